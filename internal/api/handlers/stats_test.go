package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graftseed/graft/internal/fingerprint"
	"github.com/graftseed/graft/internal/models"
)

func TestStatsEndpoint(t *testing.T) {
	env := newHandlerEnv(t)
	router := newTestRouter(env, &fakeProvider{})
	ctx := context.Background()

	_, err := env.clients.Create(ctx, "seedbox", "qbittorrent", "localhost", 8080, "", "", false)
	require.NoError(t, err)

	seedSite(t, env, "hdsky", "hdsky.me")
	seedSite(t, env, "mteam", "m-team.cc")

	seedIndexEntry(t, env, fingerprint.FromSize(1000, 1, 1000), &models.IndexEntry{
		InfoHash: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		SiteID:   "hdsky",
		Size:     1000,
	})
	seedIndexEntry(t, env, fingerprint.FromSize(2000, 1, 2000), &models.IndexEntry{
		InfoHash: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		SiteID:   "mteam",
		Size:     2000,
	})

	for _, r := range []*models.ReseedRecord{
		{InfoHash: "a1", TargetSite: "hdsky", Status: models.ReseedStatusSuccess},
		{InfoHash: "a2", TargetSite: "hdsky", Status: models.ReseedStatusSuccess},
		{InfoHash: "a3", TargetSite: "mteam", Status: models.ReseedStatusFailed, Message: "Download failed: 403"},
	} {
		require.NoError(t, env.history.Record(ctx, r))
	}

	rec := doRequest(t, router, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var stats struct {
		Index   models.IndexStats `json:"index"`
		Clients int               `json:"clients"`
		Sites   int               `json:"sites"`
		Today   map[string]int    `json:"today"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))

	assert.Equal(t, 2, stats.Index.TotalEntries)
	assert.Equal(t, 1, stats.Clients)
	assert.Equal(t, 2, stats.Sites, "only enabled sites are counted")
	assert.Equal(t, 2, stats.Today["success"])
	assert.Equal(t, 1, stats.Today["failed"])
}

func TestStatsEndpointEmpty(t *testing.T) {
	env := newHandlerEnv(t)
	router := newTestRouter(env, &fakeProvider{})

	rec := doRequest(t, router, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		Index   models.IndexStats `json:"index"`
		Clients int               `json:"clients"`
		Sites   int               `json:"sites"`
		Today   map[string]int    `json:"today"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))

	assert.Equal(t, 0, stats.Index.TotalEntries)
	assert.Equal(t, 0, stats.Clients)
	assert.Equal(t, 0, stats.Sites)
	assert.Equal(t, 0, stats.Today["success"])
}
