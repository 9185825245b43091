package mongodb

import (
	"time"

	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/domain/user"
)

type eventDoc struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Date        time.Time `bson:"date"`
	CreatedBy   *string   `bson:"createdBy"`
	ImageURL    *string   `bson:"imageUrl"`
	Attendants  []string  `bson:"attendants"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

type userDoc struct {
	ID              string    `bson:"_id"`
	UserName        string    `bson:"userName"`
	Email           string    `bson:"email"`
	PasswordHash    string    `bson:"password"`
	Role            string    `bson:"role"`
	ProfileImageURL *string   `bson:"profileImageUrl"`
	AttendingEvents []string  `bson:"attendingEvents"`
	CreatedAt       time.Time `bson:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt"`
}

func eventToDoc(e event.Event) eventDoc {
	return eventDoc{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Date:        e.Date,
		CreatedBy:   e.CreatedBy,
		ImageURL:    e.ImageURL,
		Attendants:  append([]string{}, e.Attendants...),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// Mongo stores milliseconds in UTC; times are normalised on the way out.
func (d eventDoc) toEvent() event.Event {
	return event.Event{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Date:        d.Date.UTC(),
		CreatedBy:   d.CreatedBy,
		ImageURL:    d.ImageURL,
		Attendants:  append([]string{}, d.Attendants...),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func (d eventDoc) view(refs map[string]event.UserRef) event.View {
	v := event.View{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Date:        d.Date.UTC(),
		ImageURL:    d.ImageURL,
		Attendants:  make([]event.UserRef, 0, len(d.Attendants)),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if d.CreatedBy != nil {
		if ref, ok := refs[*d.CreatedBy]; ok {
			v.CreatedBy = &ref
		}
	}
	for _, id := range d.Attendants {
		if ref, ok := refs[id]; ok {
			v.Attendants = append(v.Attendants, ref)
		}
	}
	return v
}

func userToDoc(u user.User) userDoc {
	return userDoc{
		ID:              u.ID,
		UserName:        u.UserName,
		Email:           u.Email,
		PasswordHash:    u.PasswordHash,
		Role:            u.Role,
		ProfileImageURL: u.ProfileImageURL,
		AttendingEvents: append([]string{}, u.AttendingEvents...),
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func (d userDoc) toUser() user.User {
	return user.User{
		ID:              d.ID,
		UserName:        d.UserName,
		Email:           d.Email,
		PasswordHash:    d.PasswordHash,
		Role:            d.Role,
		ProfileImageURL: d.ProfileImageURL,
		AttendingEvents: append([]string{}, d.AttendingEvents...),
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}
