package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/akozhevin/campuslink/internal/apperrors"
	"github.com/akozhevin/campuslink/internal/models"
)

type RelationshipRepo struct {
	DB DBTX
}

const getRelationship = `-- name: GetRelationship
SELECT user_id, other_user_id, status, rating
FROM relationships
WHERE user_id = $1 AND other_user_id = $2`

func (r *RelationshipRepo) Get(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID) (models.Relationship, error) {
	rows, _ := r.DB.Query(ctx, getRelationship, userID, otherUserID)
	rel, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Relationship, error) {
		var rel models.Relationship
		err := row.Scan(&rel.UserID, &rel.OtherUserID, &rel.Status, &rel.Rating)
		return rel, err
	})

	switch {
	case err == nil:
		return rel, nil
	case errors.Is(err, pgx.ErrNoRows):
		return rel, apperrors.ErrRelationshipNotFound
	default:
		return rel, fmt.Errorf("db error: %w", err)
	}
}

const upsertRelationship = `-- name: UpsertRelationship
INSERT INTO relationships (user_id, other_user_id, status, rating)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, other_user_id)
DO UPDATE SET status = EXCLUDED.status, rating = EXCLUDED.rating`

func (r *RelationshipRepo) Upsert(ctx context.Context, rel models.Relationship) error {
	_, err := r.DB.Exec(ctx, upsertRelationship, rel.UserID, rel.OtherUserID, rel.Status, rel.Rating)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const deleteRelationship = `-- name: DeleteRelationship
DELETE FROM relationships
WHERE user_id = $1 AND other_user_id = $2`

func (r *RelationshipRepo) Delete(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, deleteRelationship, userID, otherUserID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
