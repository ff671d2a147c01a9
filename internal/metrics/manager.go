package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/graftseed/graft/internal/btclient"
	"github.com/graftseed/graft/internal/models"
)

type Manager struct {
	registry  *prometheus.Registry
	collector *GraftCollector
}

func NewManager(clientStore *models.ClientStore, siteStore *models.SiteStore, indexStore *models.IndexStore, historyStore *models.HistoryStore, pool *btclient.ClientPool) *Manager {
	registry := prometheus.NewRegistry()

	collector := NewGraftCollector(clientStore, siteStore, indexStore, historyStore, pool)
	registry.MustRegister(collector)

	log.Info().Msg("Metrics manager initialized")

	return &Manager{
		registry:  registry,
		collector: collector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}
