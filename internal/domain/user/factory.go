package user

import (
	"time"

	"github.com/google/uuid"
)

func NewFromCreate(in NewUser) User {
	now := time.Now().UTC()

	role := in.Role
	if role == "" {
		role = RoleUser
	}

	return User{
		ID:              uuid.NewString(),
		UserName:        in.UserName,
		Email:           in.Email,
		PasswordHash:    in.PasswordHash,
		Role:            role,
		ProfileImageURL: in.ProfileImageURL,
		AttendingEvents: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (p Patch) Apply(u *User) {
	if p.UserName != nil {
		u.UserName = *p.UserName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.ProfileImageURL != nil {
		u.ProfileImageURL = p.ProfileImageURL
	}
	u.UpdatedAt = time.Now().UTC()
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
