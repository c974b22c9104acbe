package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/akozhevin/campuslink/internal/models"
)

type CreateUserParams struct {
	Handle           string
	Name             string
	Email            string
	PasswordSalt     []byte
	PasswordHash     []byte
	VerificationCode string
}

// User repository interface
type UserRepo interface {
	// Create user with an unverified email
	// If user with the email exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Point lookups. Must return apperrors.ErrUserNotFound when no row matches
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByHandle(ctx context.Context, handle string) (models.User, error)
	GetUserByVerificationCode(ctx context.Context, code string) (models.User, error)
	GetUserByResetCode(ctx context.Context, code string) (models.User, error)

	// Replace salt and hash together. Replacing one without the other is not
	// expressible through this interface on purpose
	UpdateCredentials(ctx context.Context, userID uuid.UUID, salt []byte, hash []byte) error

	// Set the current refresh token id and family. Both nil clears the session
	UpdateRefreshToken(ctx context.Context, userID uuid.UUID, tokenID *uuid.UUID, family *uuid.UUID) error

	SetEmailVerified(ctx context.Context, userID uuid.UUID) error
	SetPasswordResetCode(ctx context.Context, userID uuid.UUID, code *string, done bool) error

	UpdatePersonalInfo(ctx context.Context, userID uuid.UUID, info models.PersonalInfo) error
}

// Profile repository interface
type ProfileRepo interface {
	// Get profile with media urls ordered by position
	GetProfile(ctx context.Context, userID uuid.UUID) (models.Profile, error)

	UpdateEducationInfo(ctx context.Context, userID uuid.UUID, info models.EducationInfo) error
	UpdateBiography(ctx context.Context, userID uuid.UUID, biography string) error
	UpdateCardColor(ctx context.Context, userID uuid.UUID, cardColor string) error
	UpdatePictureURL(ctx context.Context, userID uuid.UUID, pictureURL string) error

	// Replace all media urls for the user, preserving list order
	DeleteMedia(ctx context.Context, userID uuid.UUID) error
	CreateMedia(ctx context.Context, userID uuid.UUID, position int, url string) error
}

// Relationship repository interface
type RelationshipRepo interface {
	// Get the directional relationship record
	// Must return apperrors.ErrRelationshipNotFound when no row matches
	Get(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID) (models.Relationship, error)

	// Create or overwrite the directional relationship record
	Upsert(ctx context.Context, rel models.Relationship) error

	Delete(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID) error
}

// Course and registration repository interface
type CourseRepo interface {
	// Must return apperrors.ErrCourseNotFound when no row matches
	GetCourse(ctx context.Context, courseID string, universityID string) (models.Course, error)
	CreateCourse(ctx context.Context, course models.Course) error

	DeleteRegistrations(ctx context.Context, userID uuid.UUID) error
	CreateRegistration(ctx context.Context, userID uuid.UUID, courseID string) error
	ListRegistrations(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// Storage bundles entity repos backed by the same database handle
type Storage interface {
	User() UserRepo
	Profile() ProfileRepo
	Relationship() RelationshipRepo
	Course() CourseRepo

	// Execute fn within a database transaction without retry semantics.
	// Use TxRunner for anything that needs conflict retries
	InTx(ctx context.Context, fn func(Storage) error) error
}

// TxRunner executes a unit of work in a serializable transaction and retries
// it from the beginning when the database reports a write-write conflict.
// Every mutating multi-statement operation goes through here.
//
// Returns apperrors.ErrConflict when the retry budget is exhausted. Any other
// failure is surfaced immediately without retry.
type TxRunner interface {
	InSerializableTx(ctx context.Context, fn func(Storage) error) error
}
