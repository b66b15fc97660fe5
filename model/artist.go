package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Artist represents a catalog artist. (Name, UserID) is the natural key:
// the same artist name ingested twice for one user resolves to one row.
type Artist struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_artists_name_user" json:"userId"`
	Name      string    `gorm:"size:200;not null;uniqueIndex:idx_artists_name_user" json:"name"`
	Bio       string    `gorm:"type:text" json:"bio,omitempty"`
	Country   string    `gorm:"size:100" json:"country,omitempty"`
	ImageKey  string    `gorm:"size:512" json:"-"`
	ImageURL  string    `gorm:"size:1024" json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (a *Artist) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
