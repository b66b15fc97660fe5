package repository

import (
	"context"
	"errors"
	"fmt"

	"melodex/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArtistRepository defines the interface for artist data operations.
type ArtistRepository interface {
	// FindOrCreate resolves the artist by its (name, user) natural key,
	// creating the row if absent. The returned bool reports whether a new
	// row was created. Safe under concurrent calls for the same key.
	FindOrCreate(ctx context.Context, artist *model.Artist) (*model.Artist, bool, error)
	GetByNameAndUser(ctx context.Context, name string, userID int64) (*model.Artist, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Artist, error)
}

type gormArtistRepository struct {
	db *gorm.DB
}

// NewArtistRepository creates a GORM-backed ArtistRepository.
func NewArtistRepository(db *gorm.DB) ArtistRepository {
	return &gormArtistRepository{db: db}
}

func (r *gormArtistRepository) FindOrCreate(ctx context.Context, artist *model.Artist) (*model.Artist, bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(artist)
	if res.Error != nil && !IsDuplicateKey(res.Error) {
		return nil, false, fmt.Errorf("failed to create artist %q: %w", artist.Name, res.Error)
	}
	if res.Error == nil && res.RowsAffected > 0 {
		return artist, true, nil
	}

	// Insert was a no-op: the row already exists or a concurrent create won
	// the race. The unique index decided; re-read the surviving row.
	existing, err := r.GetByNameAndUser(ctx, artist.Name, artist.UserID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("artist %q vanished after conflicting insert", artist.Name)
	}
	return existing, false, nil
}

func (r *gormArtistRepository) GetByNameAndUser(ctx context.Context, name string, userID int64) (*model.Artist, error) {
	var artist model.Artist
	err := r.db.WithContext(ctx).
		Where("name = ? AND user_id = ?", name, userID).
		First(&artist).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query artist %q: %w", name, err)
	}
	return &artist, nil
}

func (r *gormArtistRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Artist, error) {
	var artists []*model.Artist
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name").
		Find(&artists).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list artists for user %d: %w", userID, err)
	}
	return artists, nil
}
