package models

import (
	"github.com/google/uuid"
)

type Course struct {
	ID           string
	UniversityID string
}

type Registration struct {
	UserID   uuid.UUID
	CourseID string
}
