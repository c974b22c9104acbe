package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/akozhevin/campuslink/internal/apperrors"
	"github.com/akozhevin/campuslink/internal/handlers/render"
	"github.com/akozhevin/campuslink/internal/handlers/userctx"
	"github.com/akozhevin/campuslink/internal/logger"
	"github.com/akozhevin/campuslink/internal/models"
)

func handleRegister(users userService, l logger.Logger) http.Handler {
	type request struct {
		Name     string `json:"name" validate:"required,min=1,max=64"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}
	type response struct {
		ID     string `json:"id"`
		Handle string `json:"handle"`
		Email  string `json:"email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := users.Register(r.Context(), data.Name, data.Email, data.Password)

		switch {
		case err == nil:
			render.JSON(w, response{
				ID:     user.ID.String(),
				Handle: user.Handle,
				Email:  user.Email,
			})
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "Email already registered", http.StatusConflict)
		case errors.Is(err, apperrors.ErrConflict):
			render.ServiceError(w, "Too many concurrent requests, retry later", http.StatusConflict)
		default:
			l.Error("Failed to register user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleVerifyEmail(users userService, l logger.Logger) http.Handler {
	type request struct {
		Code string `json:"code" validate:"required"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = users.VerifyEmail(r.Context(), data.Code)

		switch {
		case err == nil:
			render.JSON(w, response{Message: "Email verified"})
		case errors.Is(err, apperrors.ErrVerificationCodeInvalid):
			render.ServiceError(w, "Verification code invalid", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrEmailAlreadyVerified):
			render.ServiceError(w, "Email already verified", http.StatusConflict)
		default:
			l.Error("Failed to verify email", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleResendVerification(users userService, l logger.Logger) http.Handler {
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

		err = users.ResendVerification(r.Context(), data.Email)

		switch {
		case err == nil, errors.Is(err, apperrors.ErrUserNotFound):
			render.JSON(w, response{Message: "If the email is registered, a verification code was sent"})
		case errors.Is(err, apperrors.ErrEmailAlreadyVerified):
			render.ServiceError(w, "Email already verified", http.StatusConflict)
		default:
			l.Error("Failed to resend verification", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleUserMe(users userService, l logger.Logger) http.Handler {
	type response struct {
		ID            string `json:"id"`
		Handle        string `json:"handle"`
		Name          string `json:"name"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		user, err := users.GetUser(r.Context(), userID)
		if err != nil {
			l.Error("Failed to get user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{
			ID:            user.ID.String(),
			Handle:        user.Handle,
			Name:          user.Name,
			Email:         user.Email,
			EmailVerified: user.EmailVerified,
		})
	})
}

func handleGetProfile(users userService, l logger.Logger) http.Handler {
	type education struct {
		UniversityID string  `json:"university_id"`
		Major        string  `json:"major"`
		Standing     string  `json:"standing"`
		GPA          float64 `json:"gpa"`
	}
	type response struct {
		UserID     string    `json:"user_id"`
		Biography  string    `json:"biography"`
		CardColor  string    `json:"card_color"`
		PictureURL string    `json:"picture_url"`
		Education  education `json:"education"`
		MediaURLs  []string  `json:"media_urls"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		profile, err := users.GetProfile(r.Context(), userID)

		switch {
		case err == nil:
			gpa, _ := profile.Education.GPA.Float64()
			render.JSON(w, response{
				UserID:     profile.UserID.String(),
				Biography:  profile.Biography,
				CardColor:  profile.CardColor,
				PictureURL: profile.PictureURL,
				Education: education{
					UniversityID: profile.Education.UniversityID,
					Major:        profile.Education.Major,
					Standing:     profile.Education.Standing,
					GPA:          gpa,
				},
				MediaURLs: profile.MediaURLs,
			})
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to get profile", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleUpdatePersonalInfo(users userService, l logger.Logger) http.Handler {
	type request struct {
		Handle      string `json:"handle" validate:"required"`
		Name        string `json:"name" validate:"required"`
		Email       string `json:"email" validate:"required,email"`
		DateOfBirth string `json:"date_of_birth"`
	}
	type response struct {
		Message string `json:"message"`
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

		err = users.UpdatePersonalInfo(r.Context(), userID, models.PersonalInfo{
			Handle:      data.Handle,
			Name:        data.Name,
			Email:       data.Email,
			DateOfBirth: data.DateOfBirth,
		})

		switch {
		case err == nil:
			render.JSON(w, response{Message: "Personal info updated"})
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "Handle or email already taken", http.StatusConflict)
		default:
			l.Error("Failed to update personal info", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleUpdateEducationInfo(users userService, l logger.Logger) http.Handler {
	type request struct {
		UniversityID string          `json:"university_id" validate:"required"`
		Major        string          `json:"major"`
		Standing     string          `json:"standing"`
		GPA          decimal.Decimal `json:"gpa"`
	}
	type response struct {
		Message string `json:"message"`
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

		err = users.UpdateEducationInfo(r.Context(), userID, models.EducationInfo{
			UniversityID: data.UniversityID,
			Major:        data.Major,
			Standing:     data.Standing,
			GPA:          data.GPA,
		})
		if err != nil {
			l.Error("Failed to update education info", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{Message: "Education info updated"})
	})
}

// handleUpdateProfileField covers the single-column profile updates that
// share the same request shape: biography, card color and picture url.
func handleUpdateProfileField(
	update func(ctx context.Context, userID uuid.UUID, value string) error,
	fieldName string,
	l logger.Logger,
) http.Handler {
	type request struct {
		Value string `json:"value" validate:"required"`
	}
	type response struct {
		Message string `json:"message"`
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

		err = update(r.Context(), userID, data.Value)
		if err != nil {
			l.Error("Failed to update profile", "field", fieldName, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{Message: fieldName + " updated"})
	})
}

func handleReplaceMedia(users userService, l logger.Logger) http.Handler {
	type request struct {
		URLs []string `json:"urls" validate:"required,max=6,dive,url"`
	}
	type response struct {
		Message string `json:"message"`
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

		err = users.ReplaceMedia(r.Context(), userID, data.URLs)

		switch {
		case err == nil:
			render.JSON(w, response{Message: "Media updated"})
		case errors.Is(err, apperrors.ErrConflict):
			render.ServiceError(w, "Too many concurrent requests, retry later", http.StatusConflict)
		default:
			l.Error("Failed to replace media", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleRegisterCourses(users userService, l logger.Logger) http.Handler {
	type request struct {
		UniversityID string   `json:"university_id" validate:"required"`
		CourseIDs    []string `json:"course_ids" validate:"required"`
	}
	type response struct {
		Message string `json:"message"`
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

		err = users.RegisterCourses(r.Context(), userID, data.UniversityID, data.CourseIDs)

		switch {
		case err == nil:
			render.JSON(w, response{Message: "Courses registered"})
		case errors.Is(err, apperrors.ErrConflict):
			render.ServiceError(w, "Too many concurrent requests, retry later", http.StatusConflict)
		default:
			l.Error("Failed to register courses", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListRegistrations(users userService, l logger.Logger) http.Handler {
	type response struct {
		CourseIDs []string `json:"course_ids"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		courseIDs, err := users.ListRegistrations(r.Context(), userID)
		if err != nil {
			l.Error("Failed to list registrations", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if courseIDs == nil {
			courseIDs = []string{}
		}
		render.JSON(w, response{CourseIDs: courseIDs})
	})
}
