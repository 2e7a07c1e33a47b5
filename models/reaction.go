package models

import "time"

// ReactionType enumerates the accepted reactions.
type ReactionType string

const (
	ReactionLike  ReactionType = "like"
	ReactionFunny ReactionType = "funny"
	ReactionSad   ReactionType = "sad"
	ReactionAngry ReactionType = "angry"
)

// ParseReactionType validates a reaction name.
func ParseReactionType(s string) (ReactionType, bool) {
	switch t := ReactionType(s); t {
	case ReactionLike, ReactionFunny, ReactionSad, ReactionAngry:
		return t, true
	default:
		return "", false
	}
}

// Reaction is a single user's reaction to a post. At most one per (post, user).
type Reaction struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	PostID    uint         `gorm:"not null;uniqueIndex:idx_reactions_post_user" json:"postId"`
	UserID    uint         `gorm:"not null;uniqueIndex:idx_reactions_post_user" json:"userId"`
	User      *Author      `gorm:"foreignKey:UserID;-:migration" json:"user,omitempty"`
	Type      ReactionType `gorm:"size:16;not null" json:"type"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
