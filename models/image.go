package models

import "time"

// Image stores a transcoded upload. The payload lives either inline in Data or in
// object storage under ObjectKey.
type Image struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Filename    string    `gorm:"size:255" json:"filename"`
	ContentType string    `gorm:"size:64;not null" json:"contentType"`
	Data        []byte    `json:"-"`
	ObjectKey   string    `gorm:"size:512" json:"-"`
	Size        int64     `json:"size"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Type        string    `gorm:"size:64;index" json:"type,omitempty"`
	RelatedID   string    `gorm:"size:64;index" json:"relatedId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
