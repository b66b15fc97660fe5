package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Album represents a catalog album. (Title, ArtistID, UserID) is the
// natural key. Albums are created lazily: a track descriptor with no album
// name produces no Album row.
type Album struct {
	ID          string     `gorm:"type:char(36);primaryKey" json:"id"`
	UserID      int64      `gorm:"not null;uniqueIndex:idx_albums_title_artist_user" json:"userId"`
	Title       string     `gorm:"size:200;not null;uniqueIndex:idx_albums_title_artist_user" json:"title"`
	ArtistID    string     `gorm:"type:char(36);not null;uniqueIndex:idx_albums_title_artist_user" json:"artistId"`
	Artist      *Artist    `gorm:"foreignKey:ArtistID" json:"artist,omitempty"`
	ReleaseDate *time.Time `gorm:"type:date" json:"releaseDate,omitempty"`
	Genre       string     `gorm:"size:100" json:"genre,omitempty"`
	CoverKey    string     `gorm:"size:512" json:"-"`
	CoverURL    string     `gorm:"size:1024" json:"coverUrl,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (a *Album) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
