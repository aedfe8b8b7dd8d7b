package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account.
//
// The scheduling engine itself only ever handles user ids as opaque
// strings; this model exists for the thin auth layer at the API boundary.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Email is the user's email address (unique). Used for login.
	Email string

	// DisplayName is the name shown to the partner.
	DisplayName string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser creates a user with a generated ID and current timestamps.
func NewUser(email, displayName, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
