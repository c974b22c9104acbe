package social

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/akozhevin/campuslink/internal/apperrors"
	"github.com/akozhevin/campuslink/internal/models"
	"github.com/akozhevin/campuslink/internal/repository"
)

// SocialService implements directional relationships between users.
// Every operation is a read-then-write over one or two rows, so all of them
// run under the serializable tx runner
type SocialService struct {
	storage repository.Storage
	tx      repository.TxRunner
}

func NewService(storage repository.Storage, tx repository.TxRunner) *SocialService {
	return &SocialService{storage: storage, tx: tx}
}

// Like records userID liking otherUserID. A mutual like upgrades both
// directions to friends
func (s *SocialService) Like(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID) error {
	return s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
		incoming, err := st.Relationship().Get(ctx, otherUserID, userID)

		switch {
		case errors.Is(err, apperrors.ErrRelationshipNotFound):
			return st.Relationship().Upsert(ctx, models.Relationship{
				UserID: userID, OtherUserID: otherUserID, Status: models.RelationshipLiked,
			})

		case err != nil:
			return err

		case incoming.Status == models.RelationshipLiked:
			err := st.Relationship().Upsert(ctx, models.Relationship{
				UserID: userID, OtherUserID: otherUserID, Status: models.RelationshipFriends,
			})
			if err != nil {
				return err
			}
			return st.Relationship().Upsert(ctx, models.Relationship{
				UserID: otherUserID, OtherUserID: userID, Status: models.RelationshipFriends,
			})
		}

		// Incoming block or friendship: nothing to do
		return nil
	})
}

// Dislike drops an incoming like so it can't mature into a friendship
func (s *SocialService) Dislike(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID) error {
	return s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
		incoming, err := st.Relationship().Get(ctx, otherUserID, userID)
		switch {
		case errors.Is(err, apperrors.ErrRelationshipNotFound):
			return nil
		case err != nil:
			return err
		case incoming.Status != models.RelationshipLiked:
			return nil
		}

		return st.Relationship().Delete(ctx, otherUserID, userID)
	})
}

// Rate sets userID's rating of a friend. Only friends can be rated
func (s *SocialService) Rate(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID, rating int) error {
	return s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
		rel, err := st.Relationship().Get(ctx, userID, otherUserID)
		switch {
		case errors.Is(err, apperrors.ErrRelationshipNotFound):
			return apperrors.ErrNotFriends
		case err != nil:
			return err
		case rel.Status != models.RelationshipFriends:
			return apperrors.ErrNotFriends
		}

		return st.Relationship().Upsert(ctx, models.Relationship{
			UserID: userID, OtherUserID: otherUserID,
			Status: models.RelationshipFriends, Rating: &rating,
		})
	})
}

// Block overwrites the relationship with a block, keeping any rating given
// while the users were friends
func (s *SocialService) Block(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID) error {
	return s.tx.InSerializableTx(ctx, func(st repository.Storage) error {
		var rating *int

		rel, err := st.Relationship().Get(ctx, userID, otherUserID)
		switch {
		case err == nil:
			rating = rel.Rating
		case !errors.Is(err, apperrors.ErrRelationshipNotFound):
			return err
		}

		return st.Relationship().Upsert(ctx, models.Relationship{
			UserID: userID, OtherUserID: otherUserID,
			Status: models.RelationshipBlocked, Rating: rating,
		})
	})
}

// Get returns the directional relationship record
func (s *SocialService) Get(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID) (models.Relationship, error) {
	return s.storage.Relationship().Get(ctx, userID, otherUserID)
}
