package user

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akozhevin/campuslink/internal/apperrors"
	"github.com/akozhevin/campuslink/internal/models"
	"github.com/akozhevin/campuslink/internal/repository"
	"github.com/akozhevin/campuslink/internal/repository/postgres"
	"github.com/akozhevin/campuslink/internal/service/auth"
	"github.com/akozhevin/campuslink/internal/service/auth/tokenmanager"
	"github.com/akozhevin/campuslink/internal/testutil"
)

// recordingNotifier captures the codes that would go out by mail
type recordingNotifier struct {
	verificationCodes []string
	resetCodes        []string
}

func (n *recordingNotifier) SendVerificationEmail(ctx context.Context, name, email, code string) error {
	n.verificationCodes = append(n.verificationCodes, code)
	return nil
}

func (n *recordingNotifier) SendPasswordResetEmail(ctx context.Context, name, email, code string) error {
	n.resetCodes = append(n.resetCodes, code)
	return nil
}

type userFixture struct {
	service  *UserService
	storage  repository.Storage
	notifier *recordingNotifier
}

func setupUsers(t *testing.T, pg testutil.PostgresContainer) userFixture {
	t.Helper()

	storage := postgres.NewStorage(pg.Pool)
	runner := postgres.NewTxManager(pg.Pool, nil)
	notifier := &recordingNotifier{}

	return userFixture{
		service:  NewService(nil, storage, runner, notifier, nil),
		storage:  storage,
		notifier: notifier,
	}
}

func Test_UserService_Register(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)
	f := setupUsers(t, pg)

	t.Run("register ok", func(t *testing.T) {
		user, err := f.service.Register(t.Context(), "Alice Smith", "Alice@Example.com", "pa55word!")

		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email, "email is stored lowercase")
		assert.Regexp(t, regexp.MustCompile(`^alicesmith#\d{4}$`), user.Handle)
		assert.False(t, user.EmailVerified)
		require.NotNil(t, user.VerificationCode)
		assert.Len(t, *user.VerificationCode, verificationCodeLength)
		require.Len(t, f.notifier.verificationCodes, 1)
		assert.Equal(t, *user.VerificationCode, f.notifier.verificationCodes[0])
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		_, err := f.service.Register(t.Context(), "Bob", "bob@example.com", "pa55word!")
		require.NoError(t, err)

		_, err = f.service.Register(t.Context(), "Bobby", "bob@example.com", "other-pass")

		assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	})

	t.Run("same name gets distinct handles", func(t *testing.T) {
		one, err := f.service.Register(t.Context(), "Carol", "carol1@example.com", "pa55word!")
		require.NoError(t, err)
		two, err := f.service.Register(t.Context(), "Carol", "carol2@example.com", "pa55word!")
		require.NoError(t, err)

		assert.NotEqual(t, one.Handle, two.Handle)
	})
}

func Test_UserService_Verification(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)
	f := setupUsers(t, pg)

	t.Run("verify email redeems the code once", func(t *testing.T) {
		user, err := f.service.Register(t.Context(), "Dave", "dave@example.com", "pa55word!")
		require.NoError(t, err)
		code := *user.VerificationCode

		require.NoError(t, f.service.VerifyEmail(t.Context(), code))

		got, err := f.storage.User().GetUserByID(t.Context(), user.ID)
		require.NoError(t, err)
		assert.True(t, got.EmailVerified)
		assert.Nil(t, got.VerificationCode)

		// The code is burned
		err = f.service.VerifyEmail(t.Context(), code)
		assert.ErrorIs(t, err, apperrors.ErrVerificationCodeInvalid)
	})

	t.Run("unknown code", func(t *testing.T) {
		err := f.service.VerifyEmail(t.Context(), "nope")
		assert.ErrorIs(t, err, apperrors.ErrVerificationCodeInvalid)
	})

	t.Run("resend returns the pending code", func(t *testing.T) {
		user, err := f.service.Register(t.Context(), "Erin", "erin@example.com", "pa55word!")
		require.NoError(t, err)

		before := len(f.notifier.verificationCodes)
		require.NoError(t, f.service.ResendVerification(t.Context(), "erin@example.com"))

		require.Len(t, f.notifier.verificationCodes, before+1)
		assert.Equal(t, *user.VerificationCode, f.notifier.verificationCodes[before], "resend must not mint a new code")
	})

	t.Run("resend after verification", func(t *testing.T) {
		user, err := f.service.Register(t.Context(), "Frank", "frank@example.com", "pa55word!")
		require.NoError(t, err)
		require.NoError(t, f.service.VerifyEmail(t.Context(), *user.VerificationCode))

		err = f.service.ResendVerification(t.Context(), "frank@example.com")
		assert.ErrorIs(t, err, apperrors.ErrEmailAlreadyVerified)
	})
}

func Test_UserService_PasswordReset(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)
	f := setupUsers(t, pg)

	register := func(t *testing.T, email string) models.User {
		t.Helper()
		user, err := f.service.Register(t.Context(), "Reset User", email, "old-pass-123")
		require.NoError(t, err)
		require.NoError(t, f.service.VerifyEmail(t.Context(), *user.VerificationCode))
		return user
	}

	t.Run("issue reuses the live code", func(t *testing.T) {
		register(t, "reset-reuse@example.com")

		require.NoError(t, f.service.IssuePasswordReset(t.Context(), "reset-reuse@example.com"))
		require.NoError(t, f.service.IssuePasswordReset(t.Context(), "reset-reuse@example.com"))

		codes := f.notifier.resetCodes
		require.GreaterOrEqual(t, len(codes), 2)
		assert.Equal(t, codes[len(codes)-2], codes[len(codes)-1], "a live code must be reused, not replaced")
		assert.Len(t, codes[len(codes)-1], resetCodeLength)
	})

	t.Run("unknown email surfaces for the handler to hide", func(t *testing.T) {
		err := f.service.IssuePasswordReset(t.Context(), "ghost@example.com")
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})

	t.Run("check and process reset", func(t *testing.T) {
		user := register(t, "reset-flow@example.com")

		require.NoError(t, f.service.IssuePasswordReset(t.Context(), "reset-flow@example.com"))
		code := f.notifier.resetCodes[len(f.notifier.resetCodes)-1]

		require.NoError(t, f.service.CheckResetCode(t.Context(), code))

		// Pretend the user had a live session
		tokenID, family := uuid.New(), uuid.New()
		require.NoError(t, f.storage.User().UpdateRefreshToken(t.Context(), user.ID, &tokenID, &family))

		require.NoError(t, f.service.ProcessReset(t.Context(), code, "brand-new-pass"))

		got, err := f.storage.User().GetUserByID(t.Context(), user.ID)
		require.NoError(t, err)
		assert.Nil(t, got.PasswordResetCode, "code must be burned")
		assert.True(t, got.PasswordResetDone)
		assert.Nil(t, got.RefreshTokenID, "reset revokes every session")
		assert.Nil(t, got.RefreshTokenFamily)

		// The code is single use
		assert.ErrorIs(t, f.service.CheckResetCode(t.Context(), code), apperrors.ErrResetCodeInvalid)
		assert.ErrorIs(t, f.service.ProcessReset(t.Context(), code, "again"), apperrors.ErrResetCodeInvalid)
	})

	t.Run("process with unknown code", func(t *testing.T) {
		err := f.service.ProcessReset(t.Context(), "not-a-code", "whatever")
		assert.ErrorIs(t, err, apperrors.ErrResetCodeInvalid)
	})
}

func Test_UserService_Profile(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)
	f := setupUsers(t, pg)

	register := func(t *testing.T, email string) models.User {
		t.Helper()
		user, err := f.service.Register(t.Context(), "Profile User", email, "pa55word!")
		require.NoError(t, err)
		return user
	}

	t.Run("profile roundtrip", func(t *testing.T) {
		user := register(t, "profile@example.com")

		gpa := decimal.RequireFromString("3.85")
		require.NoError(t, f.service.UpdateEducationInfo(t.Context(), user.ID, models.EducationInfo{
			UniversityID: "uni-001",
			Major:        "Computer Science",
			Standing:     "junior",
			GPA:          gpa,
		}))
		require.NoError(t, f.service.UpdateBiography(t.Context(), user.ID, "hello there"))
		require.NoError(t, f.service.UpdateCardColor(t.Context(), user.ID, "#ff8800"))
		require.NoError(t, f.service.UpdatePictureURL(t.Context(), user.ID, "https://cdn.example.com/p.jpg"))

		profile, err := f.service.GetProfile(t.Context(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, "uni-001", profile.Education.UniversityID)
		assert.True(t, gpa.Equal(profile.Education.GPA), "gpa should survive the numeric column")
		assert.Equal(t, "hello there", profile.Biography)
		assert.Equal(t, "#ff8800", profile.CardColor)
		assert.Equal(t, "https://cdn.example.com/p.jpg", profile.PictureURL)
	})

	t.Run("replace media keeps order", func(t *testing.T) {
		user := register(t, "media@example.com")

		first := []string{"https://m.example.com/1.jpg", "https://m.example.com/2.jpg"}
		require.NoError(t, f.service.ReplaceMedia(t.Context(), user.ID, first))

		second := []string{"https://m.example.com/9.jpg"}
		require.NoError(t, f.service.ReplaceMedia(t.Context(), user.ID, second))

		profile, err := f.service.GetProfile(t.Context(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, second, profile.MediaURLs, "replace must swap the full list")
	})

	t.Run("update personal info", func(t *testing.T) {
		user := register(t, "personal@example.com")

		require.NoError(t, f.service.UpdatePersonalInfo(t.Context(), user.ID, models.PersonalInfo{
			Handle:      "fresh#0042",
			Name:        "Fresh Name",
			Email:       "Personal-New@Example.com",
			DateOfBirth: "2000-01-02",
		}))

		got, err := f.service.GetUser(t.Context(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, "fresh#0042", got.Handle)
		assert.Equal(t, "personal-new@example.com", got.Email)
	})
}

func Test_UserService_Courses(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)
	f := setupUsers(t, pg)

	t.Run("register and replace courses", func(t *testing.T) {
		user, err := f.service.Register(t.Context(), "Course User", "courses@example.com", "pa55word!")
		require.NoError(t, err)

		err = f.service.RegisterCourses(t.Context(), user.ID, "uni-001", []string{"CS101", "MATH200"})
		require.NoError(t, err)

		got, err := f.service.ListRegistrations(t.Context(), user.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"CS101", "MATH200"}, got)

		// Replacing drops what's missing from the new set
		err = f.service.RegisterCourses(t.Context(), user.ID, "uni-001", []string{"CS101", "PHYS110"})
		require.NoError(t, err)

		got, err = f.service.ListRegistrations(t.Context(), user.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"CS101", "PHYS110"}, got)
	})

	t.Run("registering an existing course twice is fine", func(t *testing.T) {
		one, err := f.service.Register(t.Context(), "Course One", "course-one@example.com", "pa55word!")
		require.NoError(t, err)
		two, err := f.service.Register(t.Context(), "Course Two", "course-two@example.com", "pa55word!")
		require.NoError(t, err)

		require.NoError(t, f.service.RegisterCourses(t.Context(), one.ID, "uni-002", []string{"BIO150"}))
		require.NoError(t, f.service.RegisterCourses(t.Context(), two.ID, "uni-002", []string{"BIO150"}))

		got, err := f.service.ListRegistrations(t.Context(), two.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"BIO150"}, got)
	})
}

// Walks a fresh account through registration, verification, login and a
// refresh rotation, then replays the spent token.
func Test_UserService_RegisterThenLogin(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)
	f := setupUsers(t, pg)

	token, err := tokenmanager.New(tokenmanager.Config{SecretKey: "register-login-secret"})
	require.NoError(t, err)
	authService, err := auth.NewService(auth.Config{}, token, f.storage, postgres.NewTxManager(pg.Pool, nil))
	require.NoError(t, err)

	user, err := f.service.Register(t.Context(), "Alice Walker", "alice.walker@example.com", "pa55word!")
	require.NoError(t, err)
	require.NoError(t, f.service.VerifyEmail(t.Context(), *user.VerificationCode))

	// The stored hash must verify the registration password as-is
	pair, err := authService.Login(t.Context(), "alice.walker@example.com", "pa55word!")
	require.NoError(t, err)

	renewed, err := authService.Renew(t.Context(), user.ID, pair.Refresh.Value)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Refresh.Value, renewed.Refresh.Value)

	got, err := authService.UserFromAccessToken(t.Context(), renewed.Access.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// Replaying the spent token revokes the whole family
	_, err = authService.Renew(t.Context(), user.ID, pair.Refresh.Value)
	assert.ErrorIs(t, err, apperrors.ErrTokenRejected)

	_, err = authService.Renew(t.Context(), user.ID, renewed.Refresh.Value)
	assert.ErrorIs(t, err, apperrors.ErrTokenRejected)
}

func Test_RandomCode(t *testing.T) {
	t.Parallel()

	code, err := randomCode(resetCodeLength)
	require.NoError(t, err)

	assert.Len(t, code, resetCodeLength)
	assert.Regexp(t, regexp.MustCompile(`^[a-z]+$`), code)

	other, err := randomCode(resetCodeLength)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}
