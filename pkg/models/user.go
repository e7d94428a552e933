package models

import (
	"time"
)

// User represents a Google-authenticated channel owner
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	GoogleID     string    `json:"google_id,omitempty" db:"google_id"`
	Avatar       string    `json:"avatar,omitempty" db:"avatar"`
	Role         UserRole  `json:"role" db:"role"`
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// HasRefreshToken reports whether the user can have their access token renewed
func (u *User) HasRefreshToken() bool {
	return u != nil && u.RefreshToken != ""
}

// UserRole represents user roles
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)
