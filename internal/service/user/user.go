package user

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/akozhevin/campuslink/internal/apperrors"
	"github.com/akozhevin/campuslink/internal/logger"
	"github.com/akozhevin/campuslink/internal/models"
	"github.com/akozhevin/campuslink/internal/repository"
	"github.com/akozhevin/campuslink/internal/service/auth"
)

const (
	verificationCodeLength = 64
	resetCodeLength        = 64

	// Attempts to find a free discriminator for a handle before giving up
	maxHandleAttempts = 10
)

// Notifier delivers account mail. Delivery itself is not this service's
// business; the default implementation only logs
type Notifier interface {
	SendVerificationEmail(ctx context.Context, name string, email string, code string) error
	SendPasswordResetEmail(ctx context.Context, name string, email string, code string) error
}

type LogNotifier struct {
	Log logger.Logger
}

func (n LogNotifier) SendVerificationEmail(ctx context.Context, name, email, code string) error {
	n.Log.Info("verification email queued", "email", email)
	return nil
}

func (n LogNotifier) SendPasswordResetEmail(ctx context.Context, name, email, code string) error {
	n.Log.Info("password reset email queued", "email", email)
	return nil
}

type UserService struct {
	hasher   auth.PasswordHasher
	storage  repository.Storage
	tx       repository.TxRunner
	notifier Notifier
	log      logger.Logger
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage, tx repository.TxRunner, notifier Notifier, log logger.Logger) *UserService {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}
	if log == nil {
		log = logger.NewNoOp()
	}
	if notifier == nil {
		notifier = LogNotifier{Log: log}
	}

	return &UserService{
		hasher:   hasher,
		storage:  storage,
		tx:       tx,
		notifier: notifier,
		log:      log,
	}
}

// Register creates an account with an unverified email and queues the
// verification mail
func (s *UserService) Register(ctx context.Context, name string, email string, password string) (models.User, error) {
	var user models.User

	email = strings.ToLower(email)
	name = strings.TrimSpace(name)

	salt, err := s.hasher.NewSalt()
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}
	hash := s.hasher.Hash(password, salt)

	code, err := randomCode(verificationCodeLength)
	if err != nil {
		return user, err
	}

	created := false
	for attempt := 0; attempt < maxHandleAttempts && !created; attempt++ {
		handle, err := s.freeHandle(ctx, name)
		if err != nil {
			return user, err
		}

		err = s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
			// The email check and the insert must see the same state
			_, err := st.User().GetUserByEmail(ctx, email)
			switch {
			case err == nil:
				return apperrors.ErrUserAlreadyExists
			case !errors.Is(err, apperrors.ErrUserNotFound):
				return err
			}

			user, err = st.User().CreateUser(ctx, repository.CreateUserParams{
				Handle:           handle,
				Name:             name,
				Email:            email,
				PasswordSalt:     salt,
				PasswordHash:     hash,
				VerificationCode: code,
			})
			return err
		})
		if errors.Is(err, apperrors.ErrHandleTaken) {
			// Somebody grabbed the discriminator after the pre-check
			continue
		}
		if err != nil {
			return user, err
		}
		created = true
	}
	if !created {
		return user, fmt.Errorf("no free handle for %q after %d attempts: %w",
			name, maxHandleAttempts, apperrors.ErrHandleTaken)
	}

	if err := s.notifier.SendVerificationEmail(ctx, name, email, code); err != nil {
		s.log.Error("sending verification email failed", "email", email, "error", err)
	}

	return user, nil
}

// VerifyEmail redeems a verification code
func (s *UserService) VerifyEmail(ctx context.Context, code string) error {
	return s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
		user, err := st.User().GetUserByVerificationCode(ctx, code)
		if err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				return apperrors.ErrVerificationCodeInvalid
			}
			return err
		}
		if user.EmailVerified {
			return apperrors.ErrEmailAlreadyVerified
		}

		return st.User().SetEmailVerified(ctx, user.ID)
	})
}

// ResendVerification looks up the pending code for an email
func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	email = strings.ToLower(email)

	user, err := s.storage.User().GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.EmailVerified || user.VerificationCode == nil {
		return apperrors.ErrEmailAlreadyVerified
	}

	return s.notifier.SendVerificationEmail(ctx, user.Name, user.Email, *user.VerificationCode)
}

// IssuePasswordReset finds or mints the live reset code for an email and
// queues the reset mail. Whether the email exists is for the caller to hide
func (s *UserService) IssuePasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(email)

	var user models.User
	var code string
	err := s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
		var err error
		user, err = st.User().GetUserByEmail(ctx, email)
		if err != nil {
			return err
		}

		// Reuse a live code, mint one when absent or already redeemed
		if user.PasswordResetCode != nil && !user.PasswordResetDone {
			code = *user.PasswordResetCode
			return nil
		}

		code, err = randomCode(resetCodeLength)
		if err != nil {
			return err
		}
		return st.User().SetPasswordResetCode(ctx, user.ID, &code, false)
	})
	if err != nil {
		return err
	}

	return s.notifier.SendPasswordResetEmail(ctx, user.Name, user.Email, code)
}

// CheckResetCode reports whether a reset code is live
func (s *UserService) CheckResetCode(ctx context.Context, code string) error {
	user, err := s.storage.User().GetUserByResetCode(ctx, code)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return apperrors.ErrResetCodeInvalid
	case err != nil:
		return err
	case user.PasswordResetDone:
		return apperrors.ErrResetCodeInvalid
	}
	return nil
}

// ProcessReset redeems a reset code: new salt and hash together, code
// burned, every session revoked. One transaction, one outcome
func (s *UserService) ProcessReset(ctx context.Context, code string, newPassword string) error {
	salt, err := s.hasher.NewSalt()
	if err != nil {
		return err
	}
	hash := s.hasher.Hash(newPassword, salt)

	return s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
		user, err := st.User().GetUserByResetCode(ctx, code)
		if err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				return apperrors.ErrResetCodeInvalid
			}
			return err
		}
		if user.PasswordResetDone {
			return apperrors.ErrResetCodeInvalid
		}

		if err := st.User().UpdateCredentials(ctx, user.ID, salt, hash); err != nil {
			return err
		}
		if err := st.User().SetPasswordResetCode(ctx, user.ID, nil, true); err != nil {
			return err
		}

		// A reset implies the old password leaked somewhere
		return st.User().UpdateRefreshToken(ctx, user.ID, nil, nil)
	})
}

func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (models.Profile, error) {
	return s.storage.Profile().GetProfile(ctx, userID)
}

// Single-statement profile updates take no lock and skip the tx runner

func (s *UserService) UpdatePersonalInfo(ctx context.Context, userID uuid.UUID, info models.PersonalInfo) error {
	info.Email = strings.ToLower(info.Email)
	return s.storage.User().UpdatePersonalInfo(ctx, userID, info)
}

func (s *UserService) UpdateEducationInfo(ctx context.Context, userID uuid.UUID, info models.EducationInfo) error {
	return s.storage.Profile().UpdateEducationInfo(ctx, userID, info)
}

func (s *UserService) UpdateBiography(ctx context.Context, userID uuid.UUID, biography string) error {
	return s.storage.Profile().UpdateBiography(ctx, userID, biography)
}

func (s *UserService) UpdateCardColor(ctx context.Context, userID uuid.UUID, cardColor string) error {
	return s.storage.Profile().UpdateCardColor(ctx, userID, cardColor)
}

func (s *UserService) UpdatePictureURL(ctx context.Context, userID uuid.UUID, pictureURL string) error {
	return s.storage.Profile().UpdatePictureURL(ctx, userID, pictureURL)
}

// ReplaceMedia swaps the whole media list, preserving order
func (s *UserService) ReplaceMedia(ctx context.Context, userID uuid.UUID, urls []string) error {
	return s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
		if err := st.Profile().DeleteMedia(ctx, userID); err != nil {
			return err
		}
		for i, url := range urls {
			if err := st.Profile().CreateMedia(ctx, userID, i, url); err != nil {
				return err
			}
		}
		return nil
	})
}

// RegisterCourses replaces the user's registration set, creating courses
// that don't exist yet
func (s *UserService) RegisterCourses(ctx context.Context, userID uuid.UUID, universityID string, courseIDs []string) error {
	return s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
		if err := st.Course().DeleteRegistrations(ctx, userID); err != nil {
			return err
		}

		for _, courseID := range courseIDs {
			_, err := st.Course().GetCourse(ctx, courseID, universityID)
			switch {
			case errors.Is(err, apperrors.ErrCourseNotFound):
				err = st.Course().CreateCourse(ctx, models.Course{ID: courseID, UniversityID: universityID})
				if err != nil {
					return err
				}
			case err != nil:
				return err
			}

			if err := st.Course().CreateRegistration(ctx, userID, courseID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *UserService) ListRegistrations(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.storage.Course().ListRegistrations(ctx, userID)
}

// freeHandle derives "name#NNNN" with a random discriminator not yet taken
func (s *UserService) freeHandle(ctx context.Context, name string) (string, error) {
	base := strings.ToLower(strings.ReplaceAll(name, " ", ""))

	for attempt := 0; attempt < maxHandleAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10000))
		if err != nil {
			return "", fmt.Errorf("generating handle: %w", err)
		}
		handle := fmt.Sprintf("%s#%04d", base, n.Int64())

		_, err = s.storage.User().GetUserByHandle(ctx, handle)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			return handle, nil
		case err != nil:
			return "", err
		}
	}

	return "", fmt.Errorf("no free handle for %q after %d attempts", base, maxHandleAttempts)
}

// randomCode returns a random lowercase string of the given length
func randomCode(length int) (string, error) {
	const letters = "abcdefghijklmnopqrstuvwxyz"

	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", fmt.Errorf("generating code: %w", err)
		}
		code[i] = letters[n.Int64()]
	}
	return string(code), nil
}
