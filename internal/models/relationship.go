package models

import (
	"github.com/google/uuid"
)

const (
	RelationshipLiked   = "liked"
	RelationshipFriends = "friends"
	RelationshipBlocked = "blocked"
)

// Relationship is directional: UserID's standing toward OtherUserID.
// Mutual "liked" rows are upgraded to "friends" on both sides.
type Relationship struct {
	UserID      uuid.UUID
	OtherUserID uuid.UUID
	Status      string
	Rating      *int
}
