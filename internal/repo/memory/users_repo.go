package memory

import (
	"context"

	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/domain/user"
)

type UsersRepo struct {
	s *Store
}

func NewUsersRepo(s *Store) *UsersRepo {
	return &UsersRepo{s: s}
}

func (r *UsersRepo) List(_ context.Context) ([]user.Summary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	us := sortedUsers(r.s.users)
	out := make([]user.Summary, 0, len(us))
	for _, u := range us {
		sum := user.Summary{
			ID:              u.ID,
			UserName:        u.UserName,
			Email:           u.Email,
			Role:            u.Role,
			ProfileImageURL: u.ProfileImageURL,
			AttendingEvents: make([]user.EventRef, 0, len(u.AttendingEvents)),
			CreatedAt:       u.CreatedAt,
			UpdatedAt:       u.UpdatedAt,
		}
		for _, eid := range u.AttendingEvents {
			if e, ok := r.s.events[eid]; ok {
				sum.AttendingEvents = append(sum.AttendingEvents, user.EventRef{ID: e.ID, Title: e.Title})
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

func (r *UsersRepo) GetDetail(_ context.Context, id string) (user.Detail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.Detail{}, user.ErrNotFound
	}

	d := user.Detail{
		ID:              u.ID,
		UserName:        u.UserName,
		Email:           u.Email,
		Role:            u.Role,
		ProfileImageURL: u.ProfileImageURL,
		AttendingEvents: make([]event.Event, 0, len(u.AttendingEvents)),
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
	for _, eid := range u.AttendingEvents {
		if e, ok := r.s.events[eid]; ok {
			d.AttendingEvents = append(d.AttendingEvents, cloneEvent(e))
		}
	}
	return d, nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *UsersRepo) GetByUserName(_ context.Context, userName string) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.UserName == userName {
			return cloneUser(u), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) Create(_ context.Context, in user.NewUser) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.userNameTakenLocked(in.UserName, "") {
		return user.User{}, user.ErrUserNameTaken
	}

	u := user.NewFromCreate(in)
	r.s.users[u.ID] = u
	return cloneUser(u), nil
}

func (r *UsersRepo) Update(_ context.Context, id string, p user.Patch) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if p.UserName != nil && r.userNameTakenLocked(*p.UserName, id) {
		return user.User{}, user.ErrUserNameTaken
	}

	p.Apply(&u)
	r.s.users[id] = u
	return cloneUser(u), nil
}

// Delete removes the user from every attendant list and clears creator
// references to them.
func (r *UsersRepo) Delete(_ context.Context, id string) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	for eid, e := range r.s.events {
		changed := false
		if event.HasAttendant(e, id) {
			e.Attendants = without(e.Attendants, id)
			changed = true
		}
		if e.CreatedBy != nil && *e.CreatedBy == id {
			e.CreatedBy = nil
			changed = true
		}
		if changed {
			r.s.events[eid] = e
		}
	}

	delete(r.s.users, id)
	return cloneUser(u), nil
}

func (r *UsersRepo) userNameTakenLocked(name, exceptID string) bool {
	for _, u := range r.s.users {
		if u.UserName == name && u.ID != exceptID {
			return true
		}
	}
	return false
}

// Ping lets the memory backend satisfy readiness checks.
func (s *Store) Ping(context.Context) error { return nil }
