package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	Username       string      `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email          string      `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash   string      `gorm:"size:255;not null" json:"-"`
	Role           Role        `gorm:"size:16;not null;default:'user'" json:"role"`
	Bio            string      `gorm:"type:text" json:"bio,omitempty"`
	ProfilePicture *uint       `json:"profilePicture,omitempty"`
	Address        string      `gorm:"size:255" json:"address,omitempty"`
	Phone          string      `gorm:"size:64" json:"phone,omitempty"`
	Website        string      `gorm:"size:255" json:"website,omitempty"`
	Organization   string      `gorm:"size:255" json:"organization,omitempty"`
	Department     string      `gorm:"size:255" json:"department,omitempty"`
	SocialLinks    SocialLinks `gorm:"embedded;embeddedPrefix:social_" json:"socialLinks"`
	CreatedAt      time.Time   `json:"signedUpAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// SocialLinks groups optional profile links.
type SocialLinks struct {
	Twitter   string `gorm:"size:255" json:"twitter,omitempty"`
	Linkedin  string `gorm:"size:255" json:"linkedin,omitempty"`
	Facebook  string `gorm:"size:255" json:"facebook,omitempty"`
	Instagram string `gorm:"size:255" json:"instagram,omitempty"`
}

// BeforeCreate hook ensures a role is always persisted.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// Author is the display projection of a user resolved into posts, comments and reactions.
type Author struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	ProfilePicture *uint  `json:"profilePicture,omitempty"`
}

// TableName maps Author onto the users table.
func (Author) TableName() string {
	return "users"
}
