package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/akozhevin/campuslink/internal/handlers/middleware"
	"github.com/akozhevin/campuslink/internal/logger"
	"github.com/akozhevin/campuslink/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	auth authService,
	users userService,
	social socialService,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(auth)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	api := http.NewServeMux()

	api.Handle("POST /auth/register", handleRegister(users, logger))
	api.Handle("POST /auth/login", handleLogin(auth, logger))
	api.Handle("POST /auth/renew", handleTokenRenew(auth, logger))
	api.Handle("POST /auth/logout", withAuth(handleLogout(auth, logger)))
	api.Handle("POST /auth/password", withAuth(handleUpdatePassword(auth, logger)))

	api.Handle("POST /auth/email/verify", handleVerifyEmail(users, logger))
	api.Handle("POST /auth/email/resend", handleResendVerification(users, logger))
	api.Handle("POST /auth/password/forgot", handlePasswordResetRequest(users, logger))
	api.Handle("POST /auth/password/check", handlePasswordResetCheck(users, logger))
	api.Handle("POST /auth/password/reset", handlePasswordReset(users, logger))

	api.Handle("GET /users/me", withAuth(handleUserMe(users, logger)))
	api.Handle("GET /users/me/profile", withAuth(handleGetProfile(users, logger)))
	api.Handle("PUT /users/me/personal", withAuth(handleUpdatePersonalInfo(users, logger)))
	api.Handle("PUT /users/me/education", withAuth(handleUpdateEducationInfo(users, logger)))
	api.Handle("PUT /users/me/biography", withAuth(handleUpdateProfileField(users.UpdateBiography, "Biography", logger)))
	api.Handle("PUT /users/me/card-color", withAuth(handleUpdateProfileField(users.UpdateCardColor, "Card color", logger)))
	api.Handle("PUT /users/me/picture", withAuth(handleUpdateProfileField(users.UpdatePictureURL, "Picture", logger)))
	api.Handle("PUT /users/me/media", withAuth(handleReplaceMedia(users, logger)))

	api.Handle("PUT /users/me/courses", withAuth(handleRegisterCourses(users, logger)))
	api.Handle("GET /users/me/courses", withAuth(handleListRegistrations(users, logger)))

	api.Handle("POST /social/like", withAuth(handleLike(social, logger)))
	api.Handle("POST /social/dislike", withAuth(handleDislike(social, logger)))
	api.Handle("POST /social/block", withAuth(handleBlock(social, logger)))
	api.Handle("POST /social/rate", withAuth(handleRate(social, logger)))
	api.Handle("GET /social/{otherUserID}", withAuth(handleGetRelationship(social, logger)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Login user with email and password
	// Has to return apperrors.ErrInvalidCredentials for unknown emails and
	// wrong passwords alike
	Login(ctx context.Context, email string, password string) (models.TokenPair, error)

	// Renew the token pair using a refresh token
	// Rejected tokens map to apperrors.ErrTokenRejected, including the reuse
	// detection case
	Renew(ctx context.Context, userID uuid.UUID, refresh string) (models.TokenPair, error)

	// Drop the whole refresh token family for the user
	RevokeAll(ctx context.Context, userID uuid.UUID) error

	// Replace the password and issue a fresh token pair
	UpdateCredentials(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string) (models.TokenPair, error)

	// Resolve the user behind an access token
	UserFromAccessToken(ctx context.Context, access string) (models.User, error)
}

type userService interface {
	Register(ctx context.Context, name string, email string, password string) (models.User, error)
	VerifyEmail(ctx context.Context, code string) error
	ResendVerification(ctx context.Context, email string) error

	IssuePasswordReset(ctx context.Context, email string) error
	CheckResetCode(ctx context.Context, code string) error
	ProcessReset(ctx context.Context, code string, newPassword string) error

	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (models.Profile, error)
	UpdatePersonalInfo(ctx context.Context, userID uuid.UUID, info models.PersonalInfo) error
	UpdateEducationInfo(ctx context.Context, userID uuid.UUID, info models.EducationInfo) error
	UpdateBiography(ctx context.Context, userID uuid.UUID, biography string) error
	UpdateCardColor(ctx context.Context, userID uuid.UUID, cardColor string) error
	UpdatePictureURL(ctx context.Context, userID uuid.UUID, pictureURL string) error
	ReplaceMedia(ctx context.Context, userID uuid.UUID, urls []string) error

	RegisterCourses(ctx context.Context, userID uuid.UUID, universityID string, courseIDs []string) error
	ListRegistrations(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type socialService interface {
	Like(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID) error
	Dislike(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID) error
	Rate(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID, rating int) error
	Block(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID) error
	Get(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID) (models.Relationship, error)
}
