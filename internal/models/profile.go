package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PersonalInfo struct {
	Handle      string
	Name        string
	Email       string
	DateOfBirth string
}

type EducationInfo struct {
	UniversityID string
	Major        string
	Standing     string
	GPA          decimal.Decimal
}

type Profile struct {
	UserID     uuid.UUID
	Biography  string
	CardColor  string
	PictureURL string
	Education  EducationInfo
	MediaURLs  []string
}
