package models

import (
	"time"

	"gorm.io/datatypes"
)

// Comment represents a reply to a post.
type Comment struct {
	ID        uint                      `gorm:"primaryKey" json:"id"`
	PostID    uint                      `gorm:"index;not null" json:"postId"`
	UserID    uint                      `gorm:"index;not null" json:"userId"`
	User      *Author                   `gorm:"foreignKey:UserID;-:migration" json:"user,omitempty"`
	Text      string                    `gorm:"column:comment;type:text;not null" json:"comment"`
	Photos    datatypes.JSONSlice[uint] `json:"photos"`
	Pinned    bool                      `gorm:"not null;default:false" json:"pinned"`
	CreatedAt time.Time                 `json:"createdAt"`
	UpdatedAt time.Time                 `json:"updatedAt"`
}
