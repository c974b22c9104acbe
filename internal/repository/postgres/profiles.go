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

type ProfileRepo struct {
	DB DBTX
}

const getProfile = `-- name: GetProfile
SELECT id, biography, card_color, picture_url, university_id, major, standing, gpa
FROM users
WHERE id = $1`

const listMedia = `-- name: ListMedia
SELECT url FROM media
WHERE user_id = $1
ORDER BY position`

func (r *ProfileRepo) GetProfile(ctx context.Context, userID uuid.UUID) (models.Profile, error) {
	rows, _ := r.DB.Query(ctx, getProfile, userID)
	profile, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Profile, error) {
		var p models.Profile
		err := row.Scan(&p.UserID, &p.Biography, &p.CardColor, &p.PictureURL,
			&p.Education.UniversityID, &p.Education.Major, &p.Education.Standing, &p.Education.GPA)
		return p, err
	})

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return profile, apperrors.ErrUserNotFound
	case err != nil:
		return profile, fmt.Errorf("db error: %w", err)
	}

	rows, _ = r.DB.Query(ctx, listMedia, userID)
	profile.MediaURLs, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return profile, fmt.Errorf("db error: %w", err)
	}

	return profile, nil
}

const updateEducationInfo = `-- name: UpdateEducationInfo
UPDATE users
SET university_id = $2, major = $3, standing = $4, gpa = $5
WHERE id = $1`

func (r *ProfileRepo) UpdateEducationInfo(ctx context.Context, userID uuid.UUID, info models.EducationInfo) error {
	tag, err := r.DB.Exec(ctx, updateEducationInfo, userID,
		info.UniversityID, info.Major, info.Standing, info.GPA)
	return checkUserUpdated(tag, err)
}

const updateBiography = `-- name: UpdateBiography
UPDATE users
SET biography = $2
WHERE id = $1`

func (r *ProfileRepo) UpdateBiography(ctx context.Context, userID uuid.UUID, biography string) error {
	tag, err := r.DB.Exec(ctx, updateBiography, userID, biography)
	return checkUserUpdated(tag, err)
}

const updateCardColor = `-- name: UpdateCardColor
UPDATE users
SET card_color = $2
WHERE id = $1`

func (r *ProfileRepo) UpdateCardColor(ctx context.Context, userID uuid.UUID, cardColor string) error {
	tag, err := r.DB.Exec(ctx, updateCardColor, userID, cardColor)
	return checkUserUpdated(tag, err)
}

const updatePictureURL = `-- name: UpdatePictureURL
UPDATE users
SET picture_url = $2
WHERE id = $1`

func (r *ProfileRepo) UpdatePictureURL(ctx context.Context, userID uuid.UUID, pictureURL string) error {
	tag, err := r.DB.Exec(ctx, updatePictureURL, userID, pictureURL)
	return checkUserUpdated(tag, err)
}

const deleteMedia = `-- name: DeleteMedia
DELETE FROM media
WHERE user_id = $1`

func (r *ProfileRepo) DeleteMedia(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, deleteMedia, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const createMedia = `-- name: CreateMedia
INSERT INTO media (user_id, position, url)
VALUES ($1, $2, $3)`

func (r *ProfileRepo) CreateMedia(ctx context.Context, userID uuid.UUID, position int, url string) error {
	_, err := r.DB.Exec(ctx, createMedia, userID, position, url)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
