// Package model defines the core domain types for CallBridge.
package model

import (
	"errors"
	"fmt"
	"time"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MinPasswordLength = 4
)

var ErrUsernameTooShort = fmt.Errorf("username must be at least %d characters", MinUsernameLength)
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
var ErrUsernameInvalidChars = errors.New("username must contain only alphanumeric characters, underscores, or hyphens")
var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

// User represents a registered user. The password hash is an encoded
// Argon2id string and never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidateUsername checks that a username is 3-20 ASCII alphanumeric,
// underscore, or hyphen characters. Returns nil on success or a
// descriptive error.
func ValidateUsername(name string) error {
	if len(name) < MinUsernameLength {
		return ErrUsernameTooShort
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return ErrUsernameInvalidChars
		}
	}
	return nil
}

// ValidatePassword checks the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
