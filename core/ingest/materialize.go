package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"melodex/logger"
	"melodex/storage"
)

// ErrNoAssetAvailable means every source for an asset failed. Non-fatal for
// the enclosing song: an external streaming URL may still satisfy playback.
var ErrNoAssetAvailable = errors.New("no asset available")

var errAssetTooLarge = errors.New("asset exceeds size ceiling")

// AssetClass selects the storage folder and handling for an asset.
type AssetClass string

const (
	AssetAudio       AssetClass = "songs"
	AssetSongArt     AssetClass = "song_art"
	AssetCoverArt    AssetClass = "cover_art"
	AssetArtistImage AssetClass = "artist_art"
)

// Materializer downloads asset bytes from priority-ordered source URLs and
// persists them to durable object storage.
type Materializer struct {
	httpClient    *http.Client
	uploader      storage.Uploader
	maxFetchBytes int64
}

// NewMaterializer creates a Materializer uploading through the given store.
// maxFetchBytes bounds how much is pulled from any single source.
func NewMaterializer(uploader storage.Uploader, maxFetchBytes int64) *Materializer {
	return &Materializer{
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		uploader:      uploader,
		maxFetchBytes: maxFetchBytes,
	}
}

// Materialize tries each source URL in priority order, streaming the first
// reachable one into object storage under a key derived from name and the
// asset class. Re-materializing the same name is idempotent: the write
// replaces the previous object under the same key.
func (m *Materializer) Materialize(ctx context.Context, sources []string, class AssetClass, name string) (storage.Ref, error) {
	var lastErr error

	for _, src := range sources {
		if src == "" {
			continue
		}
		ref, err := m.fetchAndUpload(ctx, src, class, name)
		if err != nil {
			logger.Warn("Asset source failed",
				logger.String("url", src),
				logger.String("class", string(class)),
				logger.ErrorField(err))
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return ref, nil
	}

	if lastErr != nil {
		return storage.Ref{}, fmt.Errorf("%w: %v", ErrNoAssetAvailable, lastErr)
	}
	return storage.Ref{}, ErrNoAssetAvailable
}

func (m *Materializer) fetchAndUpload(ctx context.Context, src string, class AssetClass, name string) (storage.Ref, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return storage.Ref{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return storage.Ref{}, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return storage.Ref{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if resp.ContentLength > m.maxFetchBytes {
		return storage.Ref{}, errAssetTooLarge
	}

	contentType := resp.Header.Get("Content-Type")
	key := name + extensionFor(src, contentType)

	// Stream straight into the object store; the capped reader aborts the
	// upload if the source lies about its length. One byte of slack so a
	// source of exactly the ceiling size still succeeds.
	body := &cappedReader{r: resp.Body, remaining: m.maxFetchBytes + 1}
	ref, err := m.uploader.Upload(ctx, body, resp.ContentLength, string(class), key, contentType)
	if err != nil {
		return storage.Ref{}, fmt.Errorf("failed to upload: %w", err)
	}
	return ref, nil
}

// extensionFor guesses a file extension from the source URL, falling back
// to the response content type.
func extensionFor(src, contentType string) string {
	if ext := path.Ext(strings.SplitN(src, "?", 2)[0]); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch {
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return ".mp3"
	case strings.Contains(contentType, "jpeg"):
		return ".jpg"
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "ogg"):
		return ".ogg"
	}
	return ""
}

// cappedReader errors out once more than remaining bytes have been read,
// instead of silently truncating like io.LimitReader.
type cappedReader struct {
	r         io.Reader
	remaining int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining <= 0 {
		return 0, errAssetTooLarge
	}
	if int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	return n, err
}
