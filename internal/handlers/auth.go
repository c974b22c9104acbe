package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/akozhevin/campuslink/internal/apperrors"
	"github.com/akozhevin/campuslink/internal/handlers/render"
	"github.com/akozhevin/campuslink/internal/handlers/userctx"
	"github.com/akozhevin/campuslink/internal/logger"
	"github.com/akozhevin/campuslink/internal/models"
)

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func toTokenPairResponse(pair models.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.Access.Value,
		AccessExpiresAt:  pair.Access.ExpiresAt,
		RefreshToken:     pair.Refresh.Value,
		RefreshExpiresAt: pair.Refresh.ExpiresAt,
	}
}

func handleLogin(auth authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := auth.Login(r.Context(), data.Email, data.Password)

		switch {
		case err == nil:
			render.JSON(w, toTokenPairResponse(pair))
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid email or password", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrEmailNotVerified):
			render.ServiceError(w, "Email is not verified", http.StatusForbidden)
		default:
			l.Error("Failed to login", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleTokenRenew(auth authService, l logger.Logger) http.Handler {
	type request struct {
		UserID       uuid.UUID `json:"user_id" validate:"required"`
		RefreshToken string    `json:"refresh_token" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := auth.Renew(r.Context(), data.UserID, data.RefreshToken)

		switch {
		case err == nil:
			render.JSON(w, toTokenPairResponse(pair))
		case errors.Is(err, apperrors.ErrTokenRejected):
			// Reuse detection maps here too, on purpose identical on the wire
			render.ServiceError(w, "Refresh token rejected", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrConflict):
			render.ServiceError(w, "Too many concurrent requests, retry later", http.StatusConflict)
		default:
			l.Error("Failed to renew tokens", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleLogout(auth authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		err := auth.RevokeAll(r.Context(), userID)
		if err != nil {
			l.Error("Failed to revoke tokens", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{Message: "Logged out everywhere"})
	})
}

func handleUpdatePassword(auth authService, l logger.Logger) http.Handler {
	type request struct {
		OldPassword string `json:"old_password" validate:"required"`
		NewPassword string `json:"new_password" validate:"required,min=8"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := auth.UpdateCredentials(r.Context(), userID, data.OldPassword, data.NewPassword)

		switch {
		case err == nil:
			render.JSON(w, toTokenPairResponse(pair))
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid password", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrConflict):
			render.ServiceError(w, "Too many concurrent requests, retry later", http.StatusConflict)
		default:
			l.Error("Failed to update credentials", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handlePasswordResetRequest(users userService, l logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = users.IssuePasswordReset(r.Context(), data.Email)

		// Unknown emails get the same answer as known ones
		switch {
		case err == nil, errors.Is(err, apperrors.ErrUserNotFound):
			render.JSON(w, response{Message: "If the email is registered, a reset code was sent"})
		default:
			l.Error("Failed to issue password reset", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handlePasswordResetCheck(users userService, l logger.Logger) http.Handler {
	type request struct {
		Code string `json:"code" validate:"required"`
	}
	type response struct {
		Valid bool `json:"valid"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = users.CheckResetCode(r.Context(), data.Code)

		switch {
		case err == nil:
			render.JSON(w, response{Valid: true})
		case errors.Is(err, apperrors.ErrResetCodeInvalid):
			render.JSON(w, response{Valid: false})
		default:
			l.Error("Failed to check reset code", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handlePasswordReset(users userService, l logger.Logger) http.Handler {
	type request struct {
		Code        string `json:"code" validate:"required"`
		NewPassword string `json:"new_password" validate:"required,min=8"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = users.ProcessReset(r.Context(), data.Code, data.NewPassword)

		switch {
		case err == nil:
			render.JSON(w, response{Message: "Password updated"})
		case errors.Is(err, apperrors.ErrResetCodeInvalid):
			render.ServiceError(w, "Reset code invalid", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrConflict):
			render.ServiceError(w, "Too many concurrent requests, retry later", http.StatusConflict)
		default:
			l.Error("Failed to reset password", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
