package memory

import (
	"sort"
	"sync"

	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/domain/user"
)

// Store holds both collections under one lock so attendance changes touch
// the event and the user atomically.
type Store struct {
	mu     sync.RWMutex
	events map[string]event.Event
	users  map[string]user.User
}

func NewStore() *Store {
	return &Store{
		events: make(map[string]event.Event),
		users:  make(map[string]user.User),
	}
}

func (s *Store) Events() *EventsRepo { return &EventsRepo{s: s} }
func (s *Store) Users() *UsersRepo   { return &UsersRepo{s: s} }

func cloneEvent(e event.Event) event.Event {
	e.Attendants = append([]string{}, e.Attendants...)
	return e
}

func cloneUser(u user.User) user.User {
	u.AttendingEvents = append([]string{}, u.AttendingEvents...)
	return u
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// sortedEvents returns map values oldest first; callers hold the lock.
func sortedEvents(m map[string]event.Event) []event.Event {
	out := make([]event.Event, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func sortedUsers(m map[string]user.User) []user.User {
	out := make([]user.User, 0, len(m))
	for _, u := range m {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// viewLocked resolves creator and attendants; callers hold the lock.
func (s *Store) viewLocked(e event.Event) event.View {
	v := event.View{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Date:        e.Date,
		ImageURL:    e.ImageURL,
		Attendants:  make([]event.UserRef, 0, len(e.Attendants)),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}

	if e.CreatedBy != nil {
		if u, ok := s.users[*e.CreatedBy]; ok {
			v.CreatedBy = &event.UserRef{ID: u.ID, UserName: u.UserName}
		}
	}

	for _, id := range e.Attendants {
		if u, ok := s.users[id]; ok {
			v.Attendants = append(v.Attendants, event.UserRef{ID: u.ID, UserName: u.UserName})
		}
	}
	return v
}
