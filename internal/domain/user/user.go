package user

import (
	"errors"
	"time"

	"github.com/geocoder89/attendhub/internal/domain/event"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID              string    `json:"id"`
	UserName        string    `json:"userName"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"` // never expose hash in JSON
	Role            string    `json:"role"`
	ProfileImageURL *string   `json:"profileImageUrl,omitempty"`
	AttendingEvents []string  `json:"attendingEvents"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// EventRef is an attended event resolved to its title.
type EventRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Summary is the admin listing shape.
type Summary struct {
	ID              string     `json:"id"`
	UserName        string     `json:"userName"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	ProfileImageURL *string    `json:"profileImageUrl,omitempty"`
	AttendingEvents []EventRef `json:"attendingEvents"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Detail carries full attended event documents.
type Detail struct {
	ID              string        `json:"id"`
	UserName        string        `json:"userName"`
	Email           string        `json:"email"`
	Role            string        `json:"role"`
	ProfileImageURL *string       `json:"profileImageUrl,omitempty"`
	AttendingEvents []event.Event `json:"attendingEvents"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

var (
	ErrNotFound      = errors.New("user not found")
	ErrUserNameTaken = errors.New("username already in use")
	ErrWrongPassword = errors.New("current password is incorrect")
	ErrEmptyPassword = errors.New("new password cannot be empty")
)

type RegisterRequest struct {
	UserName string `json:"userName" form:"userName" binding:"required,max=50"`
	Password string `json:"password" form:"password" binding:"required,max=72"`
	Email    string `json:"email" form:"email" binding:"required,email"`
}

type LoginRequest struct {
	UserName string `json:"userName" form:"userName" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// UpdateUserRequest lists the only fields a client may change. Role is honoured
// for admins only; the password pair is processed separately.
type UpdateUserRequest struct {
	UserName        *string `json:"userName" form:"userName" binding:"omitempty,min=1,max=50"`
	Email           *string `json:"email" form:"email" binding:"omitempty,email"`
	Role            *string `json:"role" form:"role" binding:"omitempty,oneof=user admin"`
	CurrentPassword *string `json:"currentPassword" form:"currentPassword"`
	NewPassword     *string `json:"newPassword" form:"newPassword" binding:"omitempty,max=72"`
}

type NewUser struct {
	UserName        string
	Email           string
	PasswordHash    string
	Role            string
	ProfileImageURL *string
}

// Patch carries a partial update; nil fields are left untouched.
type Patch struct {
	UserName        *string
	Email           *string
	Role            *string
	PasswordHash    *string
	ProfileImageURL *string
}

func (p Patch) IsEmpty() bool {
	return p.UserName == nil && p.Email == nil && p.Role == nil && p.PasswordHash == nil && p.ProfileImageURL == nil
}
