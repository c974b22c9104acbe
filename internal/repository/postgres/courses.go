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

type CourseRepo struct {
	DB DBTX
}

const getCourse = `-- name: GetCourse
SELECT id, university_id
FROM courses
WHERE id = $1 AND university_id = $2`

func (r *CourseRepo) GetCourse(ctx context.Context, courseID string, universityID string) (models.Course, error) {
	rows, _ := r.DB.Query(ctx, getCourse, courseID, universityID)
	course, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Course, error) {
		var c models.Course
		err := row.Scan(&c.ID, &c.UniversityID)
		return c, err
	})

	switch {
	case err == nil:
		return course, nil
	case errors.Is(err, pgx.ErrNoRows):
		return course, apperrors.ErrCourseNotFound
	default:
		return course, fmt.Errorf("db error: %w", err)
	}
}

const createCourse = `-- name: CreateCourse
INSERT INTO courses (id, university_id)
VALUES ($1, $2)`

func (r *CourseRepo) CreateCourse(ctx context.Context, course models.Course) error {
	_, err := r.DB.Exec(ctx, createCourse, course.ID, course.UniversityID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const deleteRegistrations = `-- name: DeleteRegistrations
DELETE FROM registrations
WHERE user_id = $1`

func (r *CourseRepo) DeleteRegistrations(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, deleteRegistrations, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const createRegistration = `-- name: CreateRegistration
INSERT INTO registrations (user_id, course_id)
VALUES ($1, $2)`

func (r *CourseRepo) CreateRegistration(ctx context.Context, userID uuid.UUID, courseID string) error {
	_, err := r.DB.Exec(ctx, createRegistration, userID, courseID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const listRegistrations = `-- name: ListRegistrations
SELECT course_id FROM registrations
WHERE user_id = $1
ORDER BY course_id`

func (r *CourseRepo) ListRegistrations(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, _ := r.DB.Query(ctx, listRegistrations, userID)
	courses, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return courses, nil
}
