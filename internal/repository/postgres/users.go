package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/akozhevin/campuslink/internal/apperrors"
	"github.com/akozhevin/campuslink/internal/models"
	"github.com/akozhevin/campuslink/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, handle, name, email,
email_verified, verification_code,
password_reset_code, password_reset_done,
password_salt, password_hash,
refresh_token_id, refresh_token_family`

const createUser = `-- name: CreateUser
INSERT INTO users (handle, name, email, password_salt, password_hash, verification_code)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser,
		arg.Handle, arg.Name, arg.Email, arg.PasswordSalt, arg.PasswordHash, arg.VerificationCode)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			if pgErr.ConstraintName == "users_handle_key" {
				return user, apperrors.ErrHandleTaken
			}
			return user, apperrors.ErrUserAlreadyExists
		}
		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + `
FROM users
WHERE id = $1`

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, userID)
	return collectUser(rows)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + `
FROM users
WHERE email = $1`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows)
}

const getUserByHandle = `-- name: GetUserByHandle
SELECT ` + userColumns + `
FROM users
WHERE handle = $1`

func (r *UserRepo) GetUserByHandle(ctx context.Context, handle string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByHandle, handle)
	return collectUser(rows)
}

const getUserByVerificationCode = `-- name: GetUserByVerificationCode
SELECT ` + userColumns + `
FROM users
WHERE verification_code = $1`

func (r *UserRepo) GetUserByVerificationCode(ctx context.Context, code string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByVerificationCode, code)
	return collectUser(rows)
}

const getUserByResetCode = `-- name: GetUserByResetCode
SELECT ` + userColumns + `
FROM users
WHERE password_reset_code = $1`

func (r *UserRepo) GetUserByResetCode(ctx context.Context, code string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByResetCode, code)
	return collectUser(rows)
}

const updateCredentials = `-- name: UpdateCredentials
UPDATE users
SET password_salt = $2, password_hash = $3
WHERE id = $1`

// UpdateCredentials replaces salt and hash in one statement
func (r *UserRepo) UpdateCredentials(ctx context.Context, userID uuid.UUID, salt []byte, hash []byte) error {
	tag, err := r.DB.Exec(ctx, updateCredentials, userID, salt, hash)
	return checkUserUpdated(tag, err)
}

const updateRefreshToken = `-- name: UpdateRefreshToken
UPDATE users
SET refresh_token_id = $2, refresh_token_family = $3
WHERE id = $1`

func (r *UserRepo) UpdateRefreshToken(ctx context.Context, userID uuid.UUID, tokenID *uuid.UUID, family *uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, updateRefreshToken, userID, tokenID, family)
	return checkUserUpdated(tag, err)
}

const setEmailVerified = `-- name: SetEmailVerified
UPDATE users
SET email_verified = true, verification_code = NULL
WHERE id = $1`

func (r *UserRepo) SetEmailVerified(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, setEmailVerified, userID)
	return checkUserUpdated(tag, err)
}

const setPasswordResetCode = `-- name: SetPasswordResetCode
UPDATE users
SET password_reset_code = $2, password_reset_done = $3
WHERE id = $1`

func (r *UserRepo) SetPasswordResetCode(ctx context.Context, userID uuid.UUID, code *string, done bool) error {
	tag, err := r.DB.Exec(ctx, setPasswordResetCode, userID, code, done)
	return checkUserUpdated(tag, err)
}

const updatePersonalInfo = `-- name: UpdatePersonalInfo
UPDATE users
SET handle = $2, name = $3, email = $4, date_of_birth = $5
WHERE id = $1`

func (r *UserRepo) UpdatePersonalInfo(ctx context.Context, userID uuid.UUID, info models.PersonalInfo) error {
	tag, err := r.DB.Exec(ctx, updatePersonalInfo, userID, info.Handle, info.Name, info.Email, info.DateOfBirth)
	return checkUserUpdated(tag, err)
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func checkUserUpdated(tag pgconn.CommandTag, err error) error {
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.CreatedAt, &u.Handle, &u.Name, &u.Email,
		&u.EmailVerified, &u.VerificationCode,
		&u.PasswordResetCode, &u.PasswordResetDone,
		&u.PasswordSalt, &u.PasswordHash,
		&u.RefreshTokenID, &u.RefreshTokenFamily,
	)
	return u, err
}
