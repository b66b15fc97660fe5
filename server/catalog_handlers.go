package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"melodex/core/audio"
	"melodex/logger"
)

// SongsHandler lists the authenticated user's songs, newest first.
func (h *APIHandler) SongsHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), 0)
	songs, err := h.songRepo.ListByUser(r.Context(), claims.UserID, limit)
	if err != nil {
		logger.Error("Failed to list songs", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve songs")
		return
	}
	writeSuccess(w, http.StatusOK, "Songs retrieved successfully", songs)
}

// ArtistsHandler lists the authenticated user's artists.
func (h *APIHandler) ArtistsHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	artists, err := h.artistRepo.ListByUser(r.Context(), claims.UserID)
	if err != nil {
		logger.Error("Failed to list artists", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve artists")
		return
	}
	writeSuccess(w, http.StatusOK, "Artists retrieved successfully", artists)
}

// AlbumsHandler lists the authenticated user's albums.
func (h *APIHandler) AlbumsHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	albums, err := h.albumRepo.ListByUser(r.Context(), claims.UserID)
	if err != nil {
		logger.Error("Failed to list albums", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve albums")
		return
	}
	writeSuccess(w, http.StatusOK, "Albums retrieved successfully", albums)
}

// TagsHandler extracts embedded tags and technical properties from an
// uploaded audio file. Unsupported formats are a client-facing outcome,
// not a server error.
func (h *APIHandler) TagsHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Audio file must be less than 15MB")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	defer file.Close()

	data := new(bytes.Buffer)
	if _, err := data.ReadFrom(file); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read audio file")
		return
	}

	tags, err := audio.ReadTags(bytes.NewReader(data.Bytes()))
	if err != nil {
		if errors.Is(err, audio.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, "Unsupported audio format")
			return
		}
		logger.Error("Tag extraction failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to extract tags")
		return
	}

	result := map[string]interface{}{
		"tags": tags,
	}

	// Technical properties are best-effort: a failed probe downgrades to
	// tags only.
	if h.analyzer != nil {
		probe, probeErr := h.analyzer.Probe(r.Context(), bytes.NewReader(data.Bytes()))
		if probeErr != nil {
			logger.Warn("Audio probe failed", logger.ErrorField(probeErr))
		} else {
			result["duration"] = probe.DurationSec
			result["bitrate"] = probe.Bitrate
			result["sampleRate"] = probe.SampleRate
			result["channels"] = probe.Channels
		}
	}

	writeSuccess(w, http.StatusOK, "Metadata extracted successfully", result)
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return fallback
	}
	return limit
}
