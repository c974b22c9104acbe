package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers wrong password and unknown email alike so
	// callers can't enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenRejected is what callers see for any refresh token the service
	// refuses to honor. ErrTokenReuseDetected wraps it: errors.Is(err,
	// ErrTokenRejected) holds for the reuse case too, so the wire response is
	// identical either way.
	ErrTokenRejected      = errors.New("refresh token rejected")
	ErrTokenReuseDetected = fmt.Errorf("refresh token reuse detected: %w", ErrTokenRejected)

	// ErrConflict means the retry budget for a serializable transaction was
	// exhausted. The whole request may be retried by the caller.
	ErrConflict = errors.New("transaction conflict, retries exhausted")

	// ErrInternal marks infrastructure failures (connection loss and such).
	// Never returned for a rejected authentication attempt.
	ErrInternal = errors.New("internal error")

	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	// ErrHandleTaken means the handle lost a race for its discriminator.
	// Callers may pick another one and retry.
	ErrHandleTaken = errors.New("handle already taken")

	ErrEmailNotVerified        = errors.New("email not verified")
	ErrEmailAlreadyVerified    = errors.New("email already verified")
	ErrVerificationCodeInvalid = errors.New("verification code invalid")
	ErrResetCodeInvalid        = errors.New("password reset code invalid")

	ErrCourseNotFound       = errors.New("course not found")
	ErrRelationshipNotFound = errors.New("relationship not found")
	ErrNotFriends           = errors.New("users are not friends")
)
