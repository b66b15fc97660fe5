package repository

import (
	"context"
	"errors"
	"fmt"

	"melodex/model"

	"gorm.io/gorm"
)

// SongRepository defines the interface for song data operations.
type SongRepository interface {
	// GetByNaturalKey looks up a song by its (external id, source, user)
	// dedup key. Returns (nil, nil) when absent.
	GetByNaturalKey(ctx context.Context, externalID, source string, userID int64) (*model.Song, error)
	// Create inserts the song. A uniqueness violation is returned as
	// ErrDuplicateKey so callers can resolve the race by re-reading.
	Create(ctx context.Context, song *model.Song) error
	CountByGenre(ctx context.Context, genre string, userID int64) (int64, error)
	ListByGenre(ctx context.Context, genre string, userID int64, limit int) ([]*model.Song, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Song, error)
}

type gormSongRepository struct {
	db *gorm.DB
}

// NewSongRepository creates a GORM-backed SongRepository.
func NewSongRepository(db *gorm.DB) SongRepository {
	return &gormSongRepository{db: db}
}

func (r *gormSongRepository) GetByNaturalKey(ctx context.Context, externalID, source string, userID int64) (*model.Song, error) {
	var song model.Song
	err := r.db.WithContext(ctx).
		Where("external_id = ? AND source = ? AND user_id = ?", externalID, source, userID).
		First(&song).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query song %s/%s: %w", source, externalID, err)
	}
	return &song, nil
}

func (r *gormSongRepository) Create(ctx context.Context, song *model.Song) error {
	err := r.db.WithContext(ctx).Create(song).Error
	if err != nil {
		if IsDuplicateKey(err) {
			return fmt.Errorf("song %s/%s: %w", song.Source, song.ExternalID, ErrDuplicateKey)
		}
		return fmt.Errorf("failed to create song %q: %w", song.Title, err)
	}
	return nil
}

func (r *gormSongRepository) CountByGenre(ctx context.Context, genre string, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Song{}).
		Where("genre = ? AND user_id = ?", genre, userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count songs for genre %q: %w", genre, err)
	}
	return count, nil
}

func (r *gormSongRepository) ListByGenre(ctx context.Context, genre string, userID int64, limit int) ([]*model.Song, error) {
	var songs []*model.Song
	err := r.db.WithContext(ctx).
		Preload("Artist").
		Preload("Album").
		Where("genre = ? AND user_id = ?", genre, userID).
		Order("date_added DESC").
		Limit(limit).
		Find(&songs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list songs for genre %q: %w", genre, err)
	}
	return songs, nil
}

func (r *gormSongRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Song, error) {
	var songs []*model.Song
	q := r.db.WithContext(ctx).
		Preload("Artist").
		Preload("Album").
		Where("user_id = ?", userID).
		Order("date_added DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("failed to list songs for user %d: %w", userID, err)
	}
	return songs, nil
}
