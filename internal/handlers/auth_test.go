package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akozhevin/campuslink/internal/apperrors"
	"github.com/akozhevin/campuslink/internal/handlers/userctx"
	"github.com/akozhevin/campuslink/internal/logger"
	"github.com/akozhevin/campuslink/internal/models"
)

// fakeAuth implements authService with overridable behavior per test
type fakeAuth struct {
	login      func(ctx context.Context, email string, password string) (models.TokenPair, error)
	renew      func(ctx context.Context, userID uuid.UUID, refresh string) (models.TokenPair, error)
	revokeAll  func(ctx context.Context, userID uuid.UUID) error
	updateCred func(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string) (models.TokenPair, error)
	fromAccess func(ctx context.Context, access string) (models.User, error)
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (models.TokenPair, error) {
	return f.login(ctx, email, password)
}

func (f *fakeAuth) Renew(ctx context.Context, userID uuid.UUID, refresh string) (models.TokenPair, error) {
	return f.renew(ctx, userID, refresh)
}

func (f *fakeAuth) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return f.revokeAll(ctx, userID)
}

func (f *fakeAuth) UpdateCredentials(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) (models.TokenPair, error) {
	return f.updateCred(ctx, userID, oldPassword, newPassword)
}

func (f *fakeAuth) UserFromAccessToken(ctx context.Context, access string) (models.User, error) {
	return f.fromAccess(ctx, access)
}

func testPair() models.TokenPair {
	now := time.Now().Truncate(time.Second)
	return models.TokenPair{
		Access:  models.IssuedToken{Value: "access-token", ExpiresAt: now.Add(10 * time.Minute)},
		Refresh: models.IssuedToken{Value: "refresh-token", ExpiresAt: now.Add(30 * 24 * time.Hour)},
	}
}

func TestHandleLogin(t *testing.T) {
	t.Run("login ok", func(t *testing.T) {
		auth := &fakeAuth{
			login: func(ctx context.Context, email, password string) (models.TokenPair, error) {
				require.Equal(t, "alice@example.com", email)
				require.Equal(t, "pa55word!", password)
				return testPair(), nil
			},
		}

		srv := httptest.NewServer(handleLogin(auth, logger.NewNoOp()))
		defer srv.Close()

		resp, err := http.Post(srv.URL, "application/json",
			strings.NewReader(`{"email": "alice@example.com", "password": "pa55word!"}`))
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusOK, resp.StatusCode, "Resp: %s", string(body))
		assert.Contains(t, string(body), `"access_token":"access-token"`)
		assert.Contains(t, string(body), `"refresh_token":"refresh-token"`)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		auth := &fakeAuth{
			login: func(ctx context.Context, email, password string) (models.TokenPair, error) {
				return models.TokenPair{}, apperrors.ErrInvalidCredentials
			},
		}

		srv := httptest.NewServer(handleLogin(auth, logger.NewNoOp()))
		defer srv.Close()

		resp, err := http.Post(srv.URL, "application/json",
			strings.NewReader(`{"email": "alice@example.com", "password": "wrong"}`))
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unverified email", func(t *testing.T) {
		auth := &fakeAuth{
			login: func(ctx context.Context, email, password string) (models.TokenPair, error) {
				return models.TokenPair{}, apperrors.ErrEmailNotVerified
			},
		}

		srv := httptest.NewServer(handleLogin(auth, logger.NewNoOp()))
		defer srv.Close()

		resp, err := http.Post(srv.URL, "application/json",
			strings.NewReader(`{"email": "alice@example.com", "password": "pa55word!"}`))
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("malformed email rejected before the service", func(t *testing.T) {
		auth := &fakeAuth{
			login: func(ctx context.Context, email, password string) (models.TokenPair, error) {
				t.Fatal("service must not be called for invalid payloads")
				return models.TokenPair{}, nil
			},
		}

		srv := httptest.NewServer(handleLogin(auth, logger.NewNoOp()))
		defer srv.Close()

		resp, err := http.Post(srv.URL, "application/json",
			strings.NewReader(`{"email": "not-an-email", "password": "pa55word!"}`))
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHandleTokenRenew(t *testing.T) {
	userID := uuid.New()

	t.Run("renew ok", func(t *testing.T) {
		auth := &fakeAuth{
			renew: func(ctx context.Context, gotID uuid.UUID, refresh string) (models.TokenPair, error) {
				require.Equal(t, userID, gotID)
				require.Equal(t, "the-refresh-token", refresh)
				return testPair(), nil
			},
		}

		srv := httptest.NewServer(handleTokenRenew(auth, logger.NewNoOp()))
		defer srv.Close()

		resp, err := http.Post(srv.URL, "application/json",
			strings.NewReader(`{"user_id": "`+userID.String()+`", "refresh_token": "the-refresh-token"}`))
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("rejected and reuse look identical on the wire", func(t *testing.T) {
		for _, serviceErr := range []error{apperrors.ErrTokenRejected, apperrors.ErrTokenReuseDetected} {
			auth := &fakeAuth{
				renew: func(ctx context.Context, gotID uuid.UUID, refresh string) (models.TokenPair, error) {
					return models.TokenPair{}, serviceErr
				},
			}

			srv := httptest.NewServer(handleTokenRenew(auth, logger.NewNoOp()))

			resp, err := http.Post(srv.URL, "application/json",
				strings.NewReader(`{"user_id": "`+userID.String()+`", "refresh_token": "spent"}`))
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			resp.Body.Close() // nolint:errcheck
			srv.Close()

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.JSONEq(t, `{"error": "service_error", "message": "Refresh token rejected"}`, string(body))
		}
	})

	t.Run("retries exhausted", func(t *testing.T) {
		auth := &fakeAuth{
			renew: func(ctx context.Context, gotID uuid.UUID, refresh string) (models.TokenPair, error) {
				return models.TokenPair{}, apperrors.ErrConflict
			},
		}

		srv := httptest.NewServer(handleTokenRenew(auth, logger.NewNoOp()))
		defer srv.Close()

		resp, err := http.Post(srv.URL, "application/json",
			strings.NewReader(`{"user_id": "`+userID.String()+`", "refresh_token": "tok"}`))
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestHandleLogout(t *testing.T) {
	userID := uuid.New()

	t.Run("revokes for the authenticated user", func(t *testing.T) {
		var revoked uuid.UUID
		auth := &fakeAuth{
			revokeAll: func(ctx context.Context, gotID uuid.UUID) error {
				revoked = gotID
				return nil
			},
		}

		handler := handleLogout(auth, logger.NewNoOp())
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req = req.WithContext(userctx.New(req.Context(), userID))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, userID, revoked)
	})

	t.Run("missing user in context", func(t *testing.T) {
		auth := &fakeAuth{
			revokeAll: func(ctx context.Context, gotID uuid.UUID) error {
				t.Fatal("service must not be called without a user")
				return nil
			},
		}

		handler := handleLogout(auth, logger.NewNoOp())
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
