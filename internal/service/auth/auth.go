package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/akozhevin/campuslink/internal/apperrors"
	"github.com/akozhevin/campuslink/internal/logger"
	"github.com/akozhevin/campuslink/internal/models"
	"github.com/akozhevin/campuslink/internal/repository"
	"github.com/akozhevin/campuslink/internal/service/auth/tokenmanager"
)

type Config struct {
	// Hasher used to verify and rotate user credentials
	// Defaults to PBKDF2Hasher
	Hasher PasswordHasher

	// Logger for reuse-detection and infrastructure events
	// Defaults to the no-op logger
	Logger logger.Logger
}

// AuthService owns the refresh-token family state machine. Every state
// mutation goes through the serializable retry runner; read-only checks are
// plain point reads.
type AuthService struct {
	token   *tokenmanager.TokenManager
	hasher  PasswordHasher
	storage repository.Storage
	tx      repository.TxRunner
	log     logger.Logger
}

func NewService(cfg Config, token *tokenmanager.TokenManager, storage repository.Storage, tx repository.TxRunner) (*AuthService, error) {
	if token == nil {
		return nil, errors.New("token manager must not be nil")
	}
	if storage == nil || tx == nil {
		return nil, errors.New("storage and tx runner must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNoOp()
	}

	return &AuthService{
		token:   token,
		hasher:  hasher,
		storage: storage,
		tx:      tx,
		log:     log,
	}, nil
}

// Login verifies email and password and starts a session.
//
// A login mints a new refresh token id but keeps the user's existing token
// family when one is live; killing other sessions is what RevokeAll is for.
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.TokenPair, error) {
	email = strings.ToLower(email)

	user, err := s.storage.User().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			// Unknown email reads the same as a wrong password
			return models.TokenPair{}, apperrors.ErrInvalidCredentials
		}
		return models.TokenPair{}, s.mapError(err)
	}

	if !s.hasher.Verify(password, user.PasswordSalt, user.PasswordHash) {
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return models.TokenPair{}, apperrors.ErrEmailNotVerified
	}

	return s.issueTokens(ctx, user.ID)
}

// Renew exchanges a refresh token for a fresh pair. Rotation is one-shot:
// a token that was already exchanged revokes the whole family when presented
// again.
func (s *AuthService) Renew(ctx context.Context, userID uuid.UUID, refresh string) (models.TokenPair, error) {
	claims, err := s.token.ParseRefresh(refresh)
	if err != nil {
		return models.TokenPair{}, apperrors.ErrTokenRejected
	}
	if claims.UserID != userID {
		// Tokens never cross user boundaries, whatever their id values are
		return models.TokenPair{}, apperrors.ErrTokenRejected
	}

	// Unlocked point read settles the obvious reject paths before any
	// transaction is opened
	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return models.TokenPair{}, apperrors.ErrTokenRejected
		}
		return models.TokenPair{}, s.mapError(err)
	}

	switch {
	case user.RefreshTokenID == nil || user.RefreshTokenFamily == nil:
		return models.TokenPair{}, apperrors.ErrTokenRejected

	case *user.RefreshTokenID != claims.TokenID:
		// The token was already exchanged once and is being replayed.
		// Nuke the chain: the legitimate holder has to re-authenticate
		return models.TokenPair{}, s.revokeOnReuse(ctx, userID, claims.TokenID)

	case *user.RefreshTokenFamily != claims.TokenFamily:
		// Stale family without proven reuse, e.g. after revocation
		// elsewhere. Reject, nothing to revoke
		return models.TokenPair{}, apperrors.ErrTokenRejected
	}

	// Rotate under the guard: of N concurrent renewals with the same stale
	// token at most one may come out with a pair
	newID := uuid.New()
	var family uuid.UUID
	var reused bool
	err = s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
		reused = false

		fresh, err := st.User().GetUserByID(ctx, userID)
		if err != nil {
			return err
		}

		if fresh.RefreshTokenID == nil || fresh.RefreshTokenFamily == nil {
			return apperrors.ErrTokenRejected
		}
		if *fresh.RefreshTokenID != claims.TokenID {
			// Someone rotated this token between our read and now: the
			// presented token is spent, treat it as replayed. The
			// revocation must commit, so it can't ride an error return
			reused = true
			return st.User().UpdateRefreshToken(ctx, userID, nil, nil)
		}

		family = *fresh.RefreshTokenFamily
		return st.User().UpdateRefreshToken(ctx, userID, &newID, &family)
	})
	if err != nil {
		return models.TokenPair{}, s.mapError(err)
	}
	if reused {
		s.log.Warn("refresh token reuse detected during rotation, family revoked", "user_id", userID)
		return models.TokenPair{}, apperrors.ErrTokenReuseDetected
	}

	pair, err := s.token.IssuePair(userID, newID, family)
	if err != nil {
		return models.TokenPair{}, s.mapError(err)
	}

	return pair, nil
}

// RevokeAll clears the user's token family: logout everywhere. Outstanding
// access tokens stay valid until their embedded expiry
func (s *AuthService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	err := s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
		return st.User().UpdateRefreshToken(ctx, userID, nil, nil)
	})
	return s.mapError(err)
}

// UpdateCredentials verifies the old password, replaces salt and hash
// together, revokes every live session and starts a new one
func (s *AuthService) UpdateCredentials(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string) (models.TokenPair, error) {
	salt, err := s.hasher.NewSalt()
	if err != nil {
		return models.TokenPair{}, s.mapError(err)
	}
	hash := s.hasher.Hash(newPassword, salt)

	err = s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
		user, err := st.User().GetUserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				return apperrors.ErrInvalidCredentials
			}
			return err
		}

		if !s.hasher.Verify(oldPassword, user.PasswordSalt, user.PasswordHash) {
			return apperrors.ErrInvalidCredentials
		}

		if err := st.User().UpdateCredentials(ctx, userID, salt, hash); err != nil {
			return err
		}

		// Password change logs out every device
		return st.User().UpdateRefreshToken(ctx, userID, nil, nil)
	})
	if err != nil {
		return models.TokenPair{}, s.mapError(err)
	}

	return s.issueTokens(ctx, userID)
}

// UserFromAccessToken resolves a bearer access token to its user
func (s *AuthService) UserFromAccessToken(ctx context.Context, access string) (models.User, error) {
	userID, err := s.token.ParseAccess(access)
	if err != nil {
		return models.User{}, apperrors.ErrTokenRejected
	}

	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return models.User{}, apperrors.ErrTokenRejected
		}
		return models.User{}, s.mapError(err)
	}

	return user, nil
}

// issueTokens persists a new refresh token id under the guard and mints the
// pair. The family is preserved when one is live and minted fresh otherwise
func (s *AuthService) issueTokens(ctx context.Context, userID uuid.UUID) (models.TokenPair, error) {
	newID := uuid.New()
	var family uuid.UUID

	err := s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
		user, err := st.User().GetUserByID(ctx, userID)
		if err != nil {
			return err
		}

		if user.RefreshTokenFamily != nil {
			family = *user.RefreshTokenFamily
		} else {
			family = uuid.New()
		}

		return st.User().UpdateRefreshToken(ctx, userID, &newID, &family)
	})
	if err != nil {
		return models.TokenPair{}, s.mapError(err)
	}

	pair, err := s.token.IssuePair(userID, newID, family)
	if err != nil {
		return models.TokenPair{}, s.mapError(err)
	}

	return pair, nil
}

// revokeOnReuse clears the family after a replayed token and reports the
// rejection. The caller sees the same outcome as any other rejected token
func (s *AuthService) revokeOnReuse(ctx context.Context, userID uuid.UUID, presentedID uuid.UUID) error {
	s.log.Warn("refresh token reuse detected, revoking family",
		"user_id", userID, "presented_token_id", presentedID)

	err := s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
		return st.User().UpdateRefreshToken(ctx, userID, nil, nil)
	})
	if err != nil {
		return s.mapError(err)
	}

	return apperrors.ErrTokenReuseDetected
}

// mapError keeps taxonomy errors intact and folds anything else into
// ErrInternal so no raw persistence error crosses the service boundary
func (s *AuthService) mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperrors.ErrInvalidCredentials),
		errors.Is(err, apperrors.ErrTokenRejected),
		errors.Is(err, apperrors.ErrEmailNotVerified),
		errors.Is(err, apperrors.ErrConflict),
		errors.Is(err, apperrors.ErrUserNotFound),
		errors.Is(err, apperrors.ErrInternal):
		return err
	default:
		s.log.Error("auth storage failure", "error", err)
		return fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
	}
}
