package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Song represents a catalog song. (ExternalID, Source, UserID) is the dedup
// key, independent of title: provider titles are neither unique nor stable.
// Optional numeric metadata uses pointers so unknown stays NULL instead of
// degrading to zero.
type Song struct {
	ID         string `gorm:"type:char(36);primaryKey" json:"id"`
	UserID     int64  `gorm:"not null;uniqueIndex:idx_songs_external_source_user" json:"userId"`
	ExternalID string `gorm:"size:100;not null;uniqueIndex:idx_songs_external_source_user" json:"externalId"`
	Source     string `gorm:"size:50;not null;uniqueIndex:idx_songs_external_source_user" json:"source"`

	Title    string  `gorm:"size:200;not null" json:"title"`
	ArtistID *string `gorm:"type:char(36);index" json:"artistId,omitempty"`
	Artist   *Artist `gorm:"foreignKey:ArtistID" json:"artist,omitempty"`
	AlbumID  *string `gorm:"type:char(36);index" json:"albumId,omitempty"`
	Album    *Album  `gorm:"foreignKey:AlbumID" json:"album,omitempty"`

	// AudioKey/AudioFileURL reference the materialized copy in object
	// storage; AudioURL is the provider's external streaming fallback.
	AudioKey     string `gorm:"size:512" json:"-"`
	AudioFileURL string `gorm:"size:1024" json:"audioFileUrl,omitempty"`
	AudioURL     string `gorm:"size:1024" json:"audioUrl,omitempty"`
	DownloadURL  string `gorm:"size:1024" json:"downloadUrl,omitempty"`
	ArtKey       string `gorm:"size:512" json:"-"`
	ArtURL       string `gorm:"size:1024" json:"artUrl,omitempty"`

	DurationSec *float64   `json:"duration,omitempty"`
	Genre       string     `gorm:"size:100" json:"genre,omitempty"`
	ReleaseDate *time.Time `gorm:"type:date" json:"releaseDate,omitempty"`
	BPM         *float64   `json:"bpm,omitempty"`
	Bitrate     *int       `json:"bitrate,omitempty"`
	SampleRate  *int       `json:"sampleRate,omitempty"`
	Channels    *int       `json:"channels,omitempty"`
	TrackNumber *int       `json:"trackNumber,omitempty"`
	IsExplicit  bool       `json:"isExplicit"`
	Lyrics      string     `gorm:"type:text" json:"lyrics,omitempty"`

	DateAdded time.Time `gorm:"autoCreateTime" json:"dateAdded"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (s *Song) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
