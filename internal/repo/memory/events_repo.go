package memory

import (
	"context"

	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/domain/user"
)

type EventsRepo struct {
	s *Store
}

func NewEventsRepo(s *Store) *EventsRepo {
	return &EventsRepo{s: s}
}

func (r *EventsRepo) List(_ context.Context) ([]event.View, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	evs := sortedEvents(r.s.events)
	out := make([]event.View, 0, len(evs))
	for _, e := range evs {
		out = append(out, r.s.viewLocked(e))
	}
	return out, nil
}

func (r *EventsRepo) GetByID(_ context.Context, id string) (event.View, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.events[id]
	if !ok {
		return event.View{}, event.ErrNotFound
	}
	return r.s.viewLocked(e), nil
}

func (r *EventsRepo) Get(_ context.Context, id string) (event.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	return cloneEvent(e), nil
}

func (r *EventsRepo) Create(_ context.Context, in event.NewEvent) (event.Event, error) {
	e := event.NewFromCreate(in)

	r.s.mu.Lock()
	r.s.events[e.ID] = e
	r.s.mu.Unlock()

	return cloneEvent(e), nil
}

func (r *EventsRepo) Update(_ context.Context, id string, p event.Patch) (event.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}

	p.Apply(&e)
	r.s.events[id] = e
	return cloneEvent(e), nil
}

// Delete removes the event and drops it from every attendant's list.
func (r *EventsRepo) Delete(_ context.Context, id string) (event.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}

	for _, uid := range e.Attendants {
		if u, ok := r.s.users[uid]; ok {
			u.AttendingEvents = without(u.AttendingEvents, id)
			r.s.users[uid] = u
		}
	}

	delete(r.s.events, id)
	return cloneEvent(e), nil
}

func (r *EventsRepo) AddAttendant(_ context.Context, eventID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[eventID]
	if !ok {
		return event.ErrNotFound
	}
	u, ok := r.s.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	if event.HasAttendant(e, userID) {
		return event.ErrAlreadyAttending
	}

	e.Attendants = append(e.Attendants, userID)
	r.s.events[eventID] = e

	u.AttendingEvents = append(without(u.AttendingEvents, eventID), eventID)
	r.s.users[userID] = u
	return nil
}

func (r *EventsRepo) RemoveAttendant(_ context.Context, eventID, userID string) (event.View, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[eventID]
	if !ok {
		return event.View{}, event.ErrNotFound
	}
	if !event.HasAttendant(e, userID) {
		return event.View{}, event.ErrNotAttending
	}
	u, ok := r.s.users[userID]
	if !ok {
		return event.View{}, user.ErrNotFound
	}

	e.Attendants = without(e.Attendants, userID)
	r.s.events[eventID] = e

	u.AttendingEvents = without(u.AttendingEvents, eventID)
	r.s.users[userID] = u

	return r.s.viewLocked(e), nil
}

func (r *EventsRepo) ListAttendees(_ context.Context, eventID string) ([]event.UserRef, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.events[eventID]
	if !ok {
		return nil, event.ErrNotFound
	}
	return r.s.viewLocked(e).Attendants, nil
}
