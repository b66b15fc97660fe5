package repository

import (
	"context"
	"errors"
	"fmt"

	"melodex/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AlbumRepository defines the interface for album data operations.
type AlbumRepository interface {
	// FindOrCreate resolves the album by its (title, artist, user) natural
	// key, creating the row if absent. Safe under concurrent calls for the
	// same key.
	FindOrCreate(ctx context.Context, album *model.Album) (*model.Album, bool, error)
	GetByNaturalKey(ctx context.Context, title, artistID string, userID int64) (*model.Album, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Album, error)
}

type gormAlbumRepository struct {
	db *gorm.DB
}

// NewAlbumRepository creates a GORM-backed AlbumRepository.
func NewAlbumRepository(db *gorm.DB) AlbumRepository {
	return &gormAlbumRepository{db: db}
}

func (r *gormAlbumRepository) FindOrCreate(ctx context.Context, album *model.Album) (*model.Album, bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(album)
	if res.Error != nil && !IsDuplicateKey(res.Error) {
		return nil, false, fmt.Errorf("failed to create album %q: %w", album.Title, res.Error)
	}
	if res.Error == nil && res.RowsAffected > 0 {
		return album, true, nil
	}

	existing, err := r.GetByNaturalKey(ctx, album.Title, album.ArtistID, album.UserID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("album %q vanished after conflicting insert", album.Title)
	}
	return existing, false, nil
}

func (r *gormAlbumRepository) GetByNaturalKey(ctx context.Context, title, artistID string, userID int64) (*model.Album, error) {
	var album model.Album
	err := r.db.WithContext(ctx).
		Where("title = ? AND artist_id = ? AND user_id = ?", title, artistID, userID).
		First(&album).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query album %q: %w", title, err)
	}
	return &album, nil
}

func (r *gormAlbumRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Album, error) {
	var albums []*model.Album
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("title").
		Find(&albums).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list albums for user %d: %w", userID, err)
	}
	return albums, nil
}
