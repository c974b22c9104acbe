package models

import (
	"time"
)

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair issued by the auth service on login, credential update or renewal
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
