// Package jamendo implements the catalog provider client for the Jamendo
// tracks API. It owns request shaping, response validation and a single
// bounded retry; batch-level retry policy belongs to the caller.
package jamendo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"melodex/config"
	"melodex/logger"
	"melodex/model"

	"golang.org/x/time/rate"
)

// Source identifies songs ingested from this provider.
const Source = "jamendo"

// ErrProviderUnavailable covers every way of failing to get a usable page
// out of the provider: network errors, non-2xx responses and malformed
// payloads. Fatal to an ingestion run.
var ErrProviderUnavailable = errors.New("provider unavailable")

// Client talks to the Jamendo API.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryWait  time.Duration
}

// NewClient creates a Jamendo API client from configuration. The client ID
// is injected here once; there is no package-level credential.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:  cfg.JamendoBaseURL,
		clientID: cfg.JamendoClientID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:   rate.NewLimiter(rate.Limit(2), 4),
		retryWait: 500 * time.Millisecond,
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// trackPayload mirrors the provider's wire format for one track.
type trackPayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ArtistName    string `json:"artist_name"`
	ArtistCountry string `json:"artist_country"`
	AlbumName     string `json:"album_name"`
	AlbumImage    string `json:"album_image"`
	Duration      int    `json:"duration"`
	ReleaseDate   string `json:"releasedate"`
	Audio         string `json:"audio"`
	AudioDownload string `json:"audiodownload"`
	Image         string `json:"image"`
	MusicInfo     struct {
		Genre string  `json:"genre"`
		BPM   float64 `json:"bpm"`
		Tags  struct {
			Genres []string `json:"genres"`
		} `json:"tags"`
	} `json:"musicinfo"`
	AudioInfo struct {
		Bitrate    int `json:"bitrate"`
		SampleRate int `json:"samplerate"`
	} `json:"audioinfo"`
}

// FetchTracks pulls up to limit tracks for the given tag, ordered by the
// provider's popularity ranking. The order is preserved; each descriptor
// carries its original rank.
func (c *Client) FetchTracks(ctx context.Context, tag string, limit int) ([]model.TrackDescriptor, error) {
	body, err := c.fetchPage(ctx, tag, limit)
	if err != nil {
		// One bounded retry with backoff; anything beyond that is the
		// caller's policy.
		if ctx.Err() != nil {
			return nil, err
		}
		logger.Warn("Provider fetch failed, retrying once",
			logger.String("tag", tag), logger.ErrorField(err))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, ctx.Err())
		case <-time.After(c.retryWait):
		}
		body, err = c.fetchPage(ctx, tag, limit)
		if err != nil {
			return nil, err
		}
	}

	descriptors := make([]model.TrackDescriptor, 0, len(body))
	for i, t := range body {
		if t.ID == "" || t.Name == "" || t.ArtistName == "" {
			logger.Warn("Skipping malformed track payload",
				logger.String("tag", tag), logger.Int("index", i))
			continue
		}
		descriptors = append(descriptors, model.TrackDescriptor{
			ExternalID:    t.ID,
			Rank:          i,
			Title:         t.Name,
			ArtistName:    t.ArtistName,
			ArtistCountry: t.ArtistCountry,
			AlbumName:     t.AlbumName,
			DurationSec:   t.Duration,
			AudioURL:      t.Audio,
			DownloadURL:   t.AudioDownload,
			ImageURL:      t.Image,
			AlbumImageURL: t.AlbumImage,
			ReleaseDate:   t.ReleaseDate,
			Genres:        t.MusicInfo.Tags.Genres,
			Genre:         t.MusicInfo.Genre,
			BPM:           t.MusicInfo.BPM,
			Bitrate:       t.AudioInfo.Bitrate,
			SampleRate:    t.AudioInfo.SampleRate,
		})
	}

	logger.Info("Fetched tracks from provider",
		logger.String("tag", tag),
		logger.Int("requested", limit),
		logger.Int("received", len(descriptors)))

	return descriptors, nil
}

func (c *Client) fetchPage(ctx context.Context, tag string, limit int) ([]trackPayload, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("tags", tag)
	params.Set("include", "musicinfo")
	params.Set("audiodlformat", "mp32")
	params.Set("order", "popularity_total")

	reqURL := fmt.Sprintf("%s/tracks/?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrProviderUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var result struct {
		Results []trackPayload `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrProviderUnavailable, err)
	}
	if result.Results == nil {
		return nil, fmt.Errorf("%w: response missing results", ErrProviderUnavailable)
	}

	return result.Results, nil
}
