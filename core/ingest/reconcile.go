package ingest

import (
	"context"
	"errors"
	"fmt"

	"melodex/logger"
	"melodex/model"
	"melodex/repository"
)

// Reconciler maps one external track descriptor onto local catalog
// entities, creating only what is missing. Every step is idempotent;
// repeated or concurrent runs converge on one row per natural key.
type Reconciler struct {
	artists      repository.ArtistRepository
	albums       repository.AlbumRepository
	songs        repository.SongRepository
	normalizer   *Normalizer
	materializer *Materializer
	source       string
}

// NewReconciler wires a Reconciler for one provider source.
func NewReconciler(
	artists repository.ArtistRepository,
	albums repository.AlbumRepository,
	songs repository.SongRepository,
	normalizer *Normalizer,
	materializer *Materializer,
	source string,
) *Reconciler {
	return &Reconciler{
		artists:      artists,
		albums:       albums,
		songs:        songs,
		normalizer:   normalizer,
		materializer: materializer,
		source:       source,
	}
}

// Reconcile resolves or creates the artist, album and song for one
// descriptor. Failures are captured in the outcome, never raised: one bad
// descriptor must not abort the batch.
func (r *Reconciler) Reconcile(ctx context.Context, desc model.TrackDescriptor, userID int64) Outcome {
	outcome := Outcome{
		ExternalID: desc.ExternalID,
		Rank:       desc.Rank,
	}

	// Dedup check first: an existing song short-circuits before any
	// normalization or asset work, protecting hand-edited fields from
	// being clobbered by a later sync.
	existing, err := r.songs.GetByNaturalKey(ctx, desc.ExternalID, r.source, userID)
	if err != nil {
		return failed(outcome, "song lookup", err)
	}
	if existing != nil {
		outcome.Status = StatusSkipped
		outcome.SongID = existing.ID
		return outcome
	}

	artist, err := r.resolveArtist(ctx, desc, userID, &outcome)
	if err != nil {
		return failed(outcome, "artist", err)
	}

	canonical := r.normalizer.Normalize(desc, nil, nil)

	album, err := r.resolveAlbum(ctx, desc, artist, canonical, userID, &outcome)
	if err != nil {
		return failed(outcome, "album", err)
	}

	song := &model.Song{
		UserID:      userID,
		ExternalID:  desc.ExternalID,
		Source:      r.source,
		Title:       desc.Title,
		ArtistID:    &artist.ID,
		AudioURL:    desc.AudioURL,
		DownloadURL: desc.DownloadURL,
		DurationSec: canonical.DurationSec,
		Genre:       canonical.Genre,
		ReleaseDate: canonical.ReleaseDate,
		BPM:         canonical.BPM,
		Bitrate:     canonical.Bitrate,
		SampleRate:  canonical.SampleRate,
		Channels:    canonical.Channels,
	}
	if album != nil {
		song.AlbumID = &album.ID
	}

	// Asset materialization is best-effort: a song without a materialized
	// copy still plays through its external audio URL. Failed uploads
	// leave the reference absent, never dangling.
	if audioRef, err := r.materializer.Materialize(ctx, []string{desc.DownloadURL, desc.AudioURL}, AssetAudio, desc.ExternalID); err != nil {
		outcome.Warnings = append(outcome.Warnings,
			fmt.Sprintf("audio asset unavailable for %s: %v", desc.ExternalID, err))
	} else {
		song.AudioKey = audioRef.Key
		song.AudioFileURL = audioRef.URL
	}

	if desc.ImageURL != "" {
		if artRef, err := r.materializer.Materialize(ctx, []string{desc.ImageURL}, AssetSongArt, desc.ExternalID); err != nil {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("song art unavailable for %s: %v", desc.ExternalID, err))
		} else {
			song.ArtKey = artRef.Key
			song.ArtURL = artRef.URL
		}
	}

	if err := r.songs.Create(ctx, song); err != nil {
		if repository.IsDuplicateKey(err) {
			// A concurrent reconcile won the race past the dedup check.
			// The uniqueness constraint already resolved it; re-read the
			// surviving row and report a skip, not a failure.
			winner, readErr := r.songs.GetByNaturalKey(ctx, desc.ExternalID, r.source, userID)
			if readErr == nil && winner != nil {
				outcome.Status = StatusSkipped
				outcome.SongID = winner.ID
				return outcome
			}
			return failed(outcome, "song conflict re-read", errors.Join(err, readErr))
		}
		return failed(outcome, "song create", err)
	}

	logger.Info("Song created",
		logger.String("externalId", desc.ExternalID),
		logger.String("title", desc.Title),
		logger.Int64("userId", userID))

	outcome.Status = StatusCreated
	outcome.SongID = song.ID
	return outcome
}

// resolveArtist finds or creates the artist row. The artist image is only
// materialized when the row does not exist yet, so repeated syncs don't
// re-download it; losing the creation race just wastes one upload.
func (r *Reconciler) resolveArtist(ctx context.Context, desc model.TrackDescriptor, userID int64, outcome *Outcome) (*model.Artist, error) {
	if artist, err := r.artists.GetByNameAndUser(ctx, desc.ArtistName, userID); err != nil {
		return nil, err
	} else if artist != nil {
		return artist, nil
	}

	candidate := &model.Artist{
		UserID:  userID,
		Name:    desc.ArtistName,
		Country: desc.ArtistCountry,
	}
	if desc.ImageURL != "" {
		if ref, err := r.materializer.Materialize(ctx, []string{desc.ImageURL}, AssetArtistImage, desc.ExternalID); err != nil {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("artist image unavailable for %q: %v", desc.ArtistName, err))
		} else {
			candidate.ImageKey = ref.Key
			candidate.ImageURL = ref.URL
		}
	}

	artist, _, err := r.artists.FindOrCreate(ctx, candidate)
	return artist, err
}

// resolveAlbum finds or creates the album row, if the descriptor names one.
// The album belongs to the same artist as the song by construction.
func (r *Reconciler) resolveAlbum(ctx context.Context, desc model.TrackDescriptor, artist *model.Artist, canonical Canonical, userID int64, outcome *Outcome) (*model.Album, error) {
	if desc.AlbumName == "" {
		return nil, nil
	}

	if album, err := r.albums.GetByNaturalKey(ctx, desc.AlbumName, artist.ID, userID); err != nil {
		return nil, err
	} else if album != nil {
		return album, nil
	}

	candidate := &model.Album{
		UserID:      userID,
		Title:       desc.AlbumName,
		ArtistID:    artist.ID,
		Genre:       canonical.Genre,
		ReleaseDate: canonical.ReleaseDate,
	}
	if cover := firstNonEmpty(desc.AlbumImageURL, desc.ImageURL); cover != "" {
		if ref, err := r.materializer.Materialize(ctx, []string{desc.AlbumImageURL, desc.ImageURL}, AssetCoverArt, desc.ExternalID); err != nil {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("album cover unavailable for %q: %v", desc.AlbumName, err))
		} else {
			candidate.CoverKey = ref.Key
			candidate.CoverURL = ref.URL
		}
	}

	album, _, err := r.albums.FindOrCreate(ctx, candidate)
	return album, err
}

func failed(outcome Outcome, stage string, err error) Outcome {
	logger.Error("Reconciliation failed",
		logger.String("externalId", outcome.ExternalID),
		logger.String("stage", stage),
		logger.ErrorField(err))
	outcome.Status = StatusFailed
	outcome.Reason = fmt.Sprintf("%s: %v", stage, err)
	return outcome
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
