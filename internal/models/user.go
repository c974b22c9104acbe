package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record. PasswordSalt and PasswordHash are always
// replaced together, never one without the other.
type User struct {
	ID        uuid.UUID
	CreatedAt time.Time

	Handle string
	Name   string
	Email  string

	EmailVerified    bool
	VerificationCode *string

	PasswordResetCode *string
	PasswordResetDone bool

	PasswordSalt []byte
	PasswordHash []byte

	// Rotating refresh-token state. Both are nil when the user has no live
	// session (logged out everywhere or family revoked after reuse).
	RefreshTokenID     *uuid.UUID
	RefreshTokenFamily *uuid.UUID
}
