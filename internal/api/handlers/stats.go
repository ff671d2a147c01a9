package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/graftseed/graft/internal/models"
)

type StatsHandler struct {
	clientStore  *models.ClientStore
	siteStore    *models.SiteStore
	indexStore   *models.IndexStore
	historyStore *models.HistoryStore
}

func NewStatsHandler(clientStore *models.ClientStore, siteStore *models.SiteStore, indexStore *models.IndexStore, historyStore *models.HistoryStore) *StatsHandler {
	return &StatsHandler{
		clientStore:  clientStore,
		siteStore:    siteStore,
		indexStore:   indexStore,
		historyStore: historyStore,
	}
}

// Get aggregates the dashboard numbers in a single call
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	indexStats, err := h.indexStore.Stats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load index stats")
		RespondError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	clientCount, err := h.clientStore.Count(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to count clients")
		RespondError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	siteCount, err := h.siteStore.CountEnabled(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to count sites")
		RespondError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	success, failed, err := h.historyStore.TodayCounts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load today's counts")
		RespondError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"index":   indexStats,
		"clients": clientCount,
		"sites":   siteCount,
		"today": map[string]int{
			"success": success,
			"failed":  failed,
		},
	})
}
