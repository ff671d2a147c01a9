package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/graftseed/graft/internal/models"
	"github.com/graftseed/graft/internal/services"
)

type IndexHandler struct {
	indexService *services.IndexService
	pool         ClientProvider
}

func NewIndexHandler(indexService *services.IndexService, pool ClientProvider) *IndexHandler {
	return &IndexHandler{
		indexService: indexService,
		pool:         pool,
	}
}

// Stats returns the index entry count and per-site breakdown
func (h *IndexHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.indexService.Stats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load index stats")
		RespondError(w, http.StatusInternalServerError, "Failed to load index stats")
		return
	}

	RespondJSON(w, http.StatusOK, stats)
}

// Import walks a client's torrents into the index
func (h *IndexHandler) Import(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	client, err := h.pool.GetClient(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, models.ErrClientNotFound) {
			RespondError(w, http.StatusNotFound, "Client not found")
			return
		}
		log.Error().Err(err).Str("clientID", clientID).Msg("Failed to connect to client")
		RespondError(w, http.StatusInternalServerError, "Failed to connect to client")
		return
	}

	result, err := h.indexService.ImportFromClient(r.Context(), client, clientID)
	if err != nil {
		log.Error().Err(err).Str("clientID", clientID).Msg("Import failed")
		RespondError(w, http.StatusInternalServerError, "Import failed")
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// Clear drops the whole index
func (h *IndexHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.indexService.Clear(r.Context()); err != nil {
		log.Error().Err(err).Msg("Failed to clear index")
		RespondError(w, http.StatusInternalServerError, "Failed to clear index")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// ClearBySite drops the index entries of one site
func (h *IndexHandler) ClearBySite(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")

	if err := h.indexService.ClearBySite(r.Context(), siteID); err != nil {
		log.Error().Err(err).Str("siteID", siteID).Msg("Failed to clear index for site")
		RespondError(w, http.StatusInternalServerError, "Failed to clear index for site")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"cleared": true,
		"site_id": siteID,
	})
}
