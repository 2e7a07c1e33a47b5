package models

import (
	"time"

	"gorm.io/datatypes"
)

// Post is a piece of user content with its comments and reactions.
type Post struct {
	ID        uint                      `gorm:"primaryKey" json:"id"`
	Title     string                    `gorm:"size:255" json:"title"`
	Content   string                    `gorm:"type:text;not null" json:"content"`
	AuthorID  uint                      `gorm:"index;not null" json:"authorId"`
	Author    *Author                   `gorm:"foreignKey:AuthorID;-:migration" json:"author,omitempty"`
	Pinned    bool                      `gorm:"not null;default:false;index" json:"pinned"`
	Photos    datatypes.JSONSlice[uint] `json:"photos"`
	Comments  []Comment                 `json:"comments"`
	Reactions []Reaction                `json:"reactions"`
	CreatedAt time.Time                 `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time                 `json:"updatedAt"`
}
