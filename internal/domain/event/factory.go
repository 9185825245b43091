package event

import (
	"time"

	"github.com/google/uuid"
)

func NewFromCreate(in NewEvent) Event {
	now := time.Now().UTC()

	return Event{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
		CreatedBy:   in.CreatedBy,
		ImageURL:    in.ImageURL,
		Attendants:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Apply merges the non-nil patch fields into e.
func (p Patch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.ImageURL != nil {
		e.ImageURL = p.ImageURL
	}
	e.UpdatedAt = time.Now().UTC()
}
