package server

import (
	"errors"
	"net/http"

	"melodex/core/provider/jamendo"
	"melodex/logger"
)

// DiscoverHandler serves on-demand discovery with top-up semantics: if the
// local catalog already holds enough songs for the genre, no external fetch
// happens. Partial ingestion success still returns songs; the report rides
// along so callers see per-item warnings.
func (h *APIHandler) DiscoverHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	genre := r.URL.Query().Get("genre")
	if genre == "" {
		genre = h.cfg.DefaultGenre
	}
	limit := parseLimit(r.URL.Query().Get("limit"), 20)
	if limit > h.cfg.MaxFetchLimit {
		limit = h.cfg.MaxFetchLimit
	}

	report, err := h.controller.Run(r.Context(), genre, limit, claims.UserID, true)
	if err != nil {
		if errors.Is(err, jamendo.ErrProviderUnavailable) {
			// The provider being down doesn't empty the local catalog;
			// serve what we have and say so.
			logger.Warn("Provider unavailable during discovery",
				logger.String("genre", genre), logger.ErrorField(err))
		} else {
			logger.Error("Discovery run failed", logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Error discovering songs")
			return
		}
	}

	songs, listErr := h.songRepo.ListByGenre(r.Context(), genre, claims.UserID, limit)
	if listErr != nil {
		logger.Error("Failed to list discovered songs", logger.ErrorField(listErr))
		writeError(w, http.StatusInternalServerError, "Error discovering songs")
		return
	}

	writeSuccess(w, http.StatusOK, "Songs discovered successfully", map[string]interface{}{
		"songs":  songs,
		"report": report,
	})
}

// LastSyncHandler returns the cached report of the most recent ingestion
// run for (user, genre), if any.
func (h *APIHandler) LastSyncHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	genre := r.URL.Query().Get("genre")
	if genre == "" {
		genre = h.cfg.DefaultGenre
	}

	report, err := h.reportCache.Latest(r.Context(), claims.UserID, genre)
	if err != nil {
		logger.Error("Failed to read cached report", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve sync report")
		return
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "No sync report available")
		return
	}

	writeSuccess(w, http.StatusOK, "Sync report retrieved successfully", report)
}
