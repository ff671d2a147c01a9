package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/graftseed/graft/internal/models"
	"github.com/graftseed/graft/internal/services"
)

type ReseedHandler struct {
	reseedService *services.ReseedService
	pool          ClientProvider
}

func NewReseedHandler(reseedService *services.ReseedService, pool ClientProvider) *ReseedHandler {
	return &ReseedHandler{
		reseedService: reseedService,
		pool:          pool,
	}
}

// PreviewRequest selects the source client and the sites to match against.
type PreviewRequest struct {
	SourceClientID string   `json:"source_client_id"`
	TargetSiteIDs  []string `json:"target_site_ids"`
}

// Preview lists cross-seed candidates without touching anything
func (h *ReseedHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SourceClientID == "" || len(req.TargetSiteIDs) == 0 {
		RespondError(w, http.StatusBadRequest, "source_client_id and target_site_ids are required")
		return
	}

	source, err := h.pool.GetClient(r.Context(), req.SourceClientID)
	if err != nil {
		if errors.Is(err, models.ErrClientNotFound) {
			RespondError(w, http.StatusNotFound, "Source client not found")
			return
		}
		log.Error().Err(err).Str("clientID", req.SourceClientID).Msg("Failed to connect to source client")
		RespondError(w, http.StatusInternalServerError, "Failed to connect to source client")
		return
	}

	result, err := h.reseedService.Preview(r.Context(), source, req.SourceClientID, req.TargetSiteIDs)
	if err != nil {
		log.Error().Err(err).Msg("Preview failed")
		RespondError(w, http.StatusInternalServerError, "Preview failed")
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// Execute runs the reseed pipeline against the target client
func (h *ReseedHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req services.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SourceClientID == "" || req.TargetClientID == "" || len(req.TargetSiteIDs) == 0 {
		RespondError(w, http.StatusBadRequest, "source_client_id, target_client_id, and target_site_ids are required")
		return
	}

	source, err := h.pool.GetClient(r.Context(), req.SourceClientID)
	if err != nil {
		if errors.Is(err, models.ErrClientNotFound) {
			RespondError(w, http.StatusNotFound, "Source client not found")
			return
		}
		log.Error().Err(err).Str("clientID", req.SourceClientID).Msg("Failed to connect to source client")
		RespondError(w, http.StatusInternalServerError, "Failed to connect to source client")
		return
	}

	target := source
	if req.TargetClientID != req.SourceClientID {
		target, err = h.pool.GetClient(r.Context(), req.TargetClientID)
		if err != nil {
			if errors.Is(err, models.ErrClientNotFound) {
				RespondError(w, http.StatusNotFound, "Target client not found")
				return
			}
			log.Error().Err(err).Str("clientID", req.TargetClientID).Msg("Failed to connect to target client")
			RespondError(w, http.StatusInternalServerError, "Failed to connect to target client")
			return
		}
	}

	result, err := h.reseedService.Execute(r.Context(), req, source, target)
	if err != nil {
		log.Error().Err(err).Msg("Reseed execute failed")
		RespondError(w, http.StatusInternalServerError, "Reseed execute failed")
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// History lists past reseed attempts, newest first
func (h *ReseedHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	status := r.URL.Query().Get("status")

	records, err := h.reseedService.History(r.Context(), status, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load reseed history")
		RespondError(w, http.StatusInternalServerError, "Failed to load reseed history")
		return
	}

	RespondJSON(w, http.StatusOK, records)
}
