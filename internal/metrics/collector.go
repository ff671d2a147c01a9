package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/graftseed/graft/internal/btclient"
	"github.com/graftseed/graft/internal/models"
)

// GraftCollector reads gauges straight from the stores on every scrape.
// Nothing is incremented in the hot paths; the database is the source of
// truth for counters too.
type GraftCollector struct {
	clientStore  *models.ClientStore
	siteStore    *models.SiteStore
	indexStore   *models.IndexStore
	historyStore *models.HistoryStore
	pool         *btclient.ClientPool

	clientsDesc          *prometheus.Desc
	clientBackoffDesc    *prometheus.Desc
	sitesEnabledDesc     *prometheus.Desc
	indexEntriesDesc     *prometheus.Desc
	indexSiteEntriesDesc *prometheus.Desc
	reseedResultsDesc    *prometheus.Desc
	scrapeErrorsDesc     *prometheus.Desc
}

func NewGraftCollector(clientStore *models.ClientStore, siteStore *models.SiteStore, indexStore *models.IndexStore, historyStore *models.HistoryStore, pool *btclient.ClientPool) *GraftCollector {
	return &GraftCollector{
		clientStore:  clientStore,
		siteStore:    siteStore,
		indexStore:   indexStore,
		historyStore: historyStore,
		pool:         pool,

		clientsDesc: prometheus.NewDesc(
			"graft_clients",
			"Number of configured download clients",
			nil,
			nil,
		),
		clientBackoffDesc: prometheus.NewDesc(
			"graft_client_backoff",
			"Whether a download client is in connection backoff (1=backing off)",
			[]string{"client_id", "client_name"},
			nil,
		),
		sitesEnabledDesc: prometheus.NewDesc(
			"graft_sites_enabled",
			"Number of enabled tracker sites",
			nil,
			nil,
		),
		indexEntriesDesc: prometheus.NewDesc(
			"graft_index_entries",
			"Number of torrents in the cross-seed index",
			nil,
			nil,
		),
		indexSiteEntriesDesc: prometheus.NewDesc(
			"graft_index_site_entries",
			"Number of index entries by site",
			[]string{"site_id"},
			nil,
		),
		reseedResultsDesc: prometheus.NewDesc(
			"graft_reseed_results_total",
			"Total number of recorded reseed attempts by status",
			[]string{"status"},
			nil,
		),
		scrapeErrorsDesc: prometheus.NewDesc(
			"graft_scrape_errors_total",
			"Total number of scrape errors by source",
			[]string{"source"},
			nil,
		),
	}
}

func (c *GraftCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.clientsDesc
	ch <- c.clientBackoffDesc
	ch <- c.sitesEnabledDesc
	ch <- c.indexEntriesDesc
	ch <- c.indexSiteEntriesDesc
	ch <- c.reseedResultsDesc
	ch <- c.scrapeErrorsDesc
}

func (c *GraftCollector) reportError(ch chan<- prometheus.Metric, source string) {
	ch <- prometheus.MustNewConstMetric(
		c.scrapeErrorsDesc,
		prometheus.CounterValue,
		1,
		source,
	)
}

func (c *GraftCollector) Collect(ch chan<- prometheus.Metric) {
	if c.clientStore == nil || c.siteStore == nil || c.indexStore == nil || c.historyStore == nil {
		log.Debug().Msg("Stores are nil, skipping metrics collection")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clients, err := c.clientStore.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list clients for metrics")
		c.reportError(ch, "clients")
	} else {
		ch <- prometheus.MustNewConstMetric(
			c.clientsDesc,
			prometheus.GaugeValue,
			float64(len(clients)),
		)
		if c.pool != nil {
			for _, client := range clients {
				inBackoff, _, _ := c.pool.BackoffStatus(client.ID)
				backingOff := 0.0
				if inBackoff {
					backingOff = 1.0
				}
				ch <- prometheus.MustNewConstMetric(
					c.clientBackoffDesc,
					prometheus.GaugeValue,
					backingOff,
					client.ID,
					client.Name,
				)
			}
		}
	}

	enabled, err := c.siteStore.CountEnabled(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count sites for metrics")
		c.reportError(ch, "sites")
	} else {
		ch <- prometheus.MustNewConstMetric(
			c.sitesEnabledDesc,
			prometheus.GaugeValue,
			float64(enabled),
		)
	}

	stats, err := c.indexStore.Stats(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load index stats for metrics")
		c.reportError(ch, "index")
	} else {
		ch <- prometheus.MustNewConstMetric(
			c.indexEntriesDesc,
			prometheus.GaugeValue,
			float64(stats.TotalEntries),
		)
		for _, site := range stats.Sites {
			ch <- prometheus.MustNewConstMetric(
				c.indexSiteEntriesDesc,
				prometheus.GaugeValue,
				float64(site.Count),
				site.SiteID,
			)
		}
	}

	counts, err := c.historyStore.StatusCounts(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load reseed history counts for metrics")
		c.reportError(ch, "history")
	} else {
		for status, count := range counts {
			ch <- prometheus.MustNewConstMetric(
				c.reseedResultsDesc,
				prometheus.CounterValue,
				float64(count),
				status,
			)
		}
	}
}
