package event

import (
	"errors"
	"strings"
	"time"
)

// Event is the stored shape: references are ids, not resolved documents.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	CreatedBy   *string   `json:"createdBy,omitempty"`
	ImageURL    *string   `json:"imageUrl,omitempty"`
	Attendants  []string  `json:"attendants"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserRef is a user reference resolved to its display name.
type UserRef struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
}

// View is an event with creator and attendants resolved.
type View struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	CreatedBy   *UserRef  `json:"createdBy"`
	ImageURL    *string   `json:"imageUrl,omitempty"`
	Attendants  []UserRef `json:"attendants"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

var (
	ErrNotFound         = errors.New("event not found")
	ErrAlreadyAttending = errors.New("user already listed as attendant")
	ErrNotAttending     = errors.New("user not listed as attendant")
	ErrInvalidDate      = errors.New("invalid date")
)

// CreateEventRequest binds from JSON or multipart form. Date stays a string so
// both "2024-01-01" and RFC3339 are accepted.
type CreateEventRequest struct {
	Title       string  `json:"title" form:"title" binding:"required,max=200"`
	Description string  `json:"description" form:"description" binding:"required,max=5000"`
	Date        string  `json:"date" form:"date" binding:"required"`
	CreatedBy   *string `json:"createdBy" form:"createdBy" binding:"omitempty,uuid"`
}

// UpdateEventRequest lists the only fields a client may change.
type UpdateEventRequest struct {
	Title       *string `json:"title" form:"title" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" form:"description" binding:"omitempty,min=1,max=5000"`
	Date        *string `json:"date" form:"date" binding:"omitempty"`
}

// NewEvent is what repositories persist on create.
type NewEvent struct {
	Title       string
	Description string
	Date        time.Time
	CreatedBy   *string
	ImageURL    *string
}

// Patch carries a partial update; nil fields are left untouched.
type Patch struct {
	Title       *string
	Description *string
	Date        *time.Time
	ImageURL    *string
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Date == nil && p.ImageURL == nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDate accepts the formats browsers and form posts send for a date or datetime.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, ErrInvalidDate
}

func HasAttendant(e Event, userID string) bool {
	for _, id := range e.Attendants {
		if id == userID {
			return true
		}
	}
	return false
}
