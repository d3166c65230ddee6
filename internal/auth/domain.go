package auth

import (
	"errors"
	"time"
)

// User represents an account allowed to call the API.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Admin        bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenNotFound means the bearer token is unknown or expired.
	ErrTokenNotFound = errors.New("token not found")
)
