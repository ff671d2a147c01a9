package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graftseed/graft/internal/btclient"
	"github.com/graftseed/graft/internal/metrics"
	"github.com/graftseed/graft/internal/models"
	"github.com/graftseed/graft/internal/services"
)

// testDeps builds router dependencies out of zero values. Handlers are
// never executed during chi.Walk, so the stores don't need a database.
func testDeps() *Dependencies {
	return &Dependencies{
		Version:       "test",
		ClientStore:   &models.ClientStore{},
		SiteStore:     &models.SiteStore{},
		IndexStore:    &models.IndexStore{},
		HistoryStore:  &models.HistoryStore{},
		Pool:          &btclient.ClientPool{},
		IndexService:  &services.IndexService{},
		ReseedService: &services.ReseedService{},
	}
}

// TestRouterRouteTable ensures every published endpoint is wired into the router
func TestRouterRouteTable(t *testing.T) {
	deps := testDeps()
	deps.Metrics = metrics.NewManager(nil, nil, nil, nil, nil)

	router := NewRouter(deps)

	registered := make(map[string]bool)
	walkFunc := func(method string, path string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		registered[method+" "+path] = true
		return nil
	}
	require.NoError(t, chi.Walk(router, walkFunc))

	expected := []string{
		"GET /api/health",
		"GET /api/clients/",
		"POST /api/clients/",
		"GET /api/clients/{clientID}/",
		"PUT /api/clients/{clientID}/",
		"DELETE /api/clients/{clientID}/",
		"POST /api/clients/{clientID}/test",
		"GET /api/clients/{clientID}/torrents",
		"GET /api/sites/",
		"POST /api/sites/",
		"GET /api/sites/available",
		"GET /api/sites/{siteID}/",
		"PUT /api/sites/{siteID}/",
		"DELETE /api/sites/{siteID}/",
		"GET /api/index/stats",
		"POST /api/index/import/{clientID}",
		"DELETE /api/index/",
		"DELETE /api/index/{siteID}",
		"POST /api/reseed/preview",
		"POST /api/reseed/execute",
		"GET /api/reseed/history",
		"GET /api/stats",
		"GET /metrics",
	}

	for _, route := range expected {
		assert.True(t, registered[route], "route %s should be registered", route)
	}
}

func TestHealthEndpoint(t *testing.T) {
	deps := testDeps()
	deps.Version = "1.2.3"

	router := NewRouter(deps)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"1.2.3"}`, rec.Body.String())
}

// TestMetricsEndpointRequiresManager checks /metrics stays dark unless metrics are enabled
func TestMetricsEndpointRequiresManager(t *testing.T) {
	router := NewRouter(testDeps())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpointServed(t *testing.T) {
	deps := testDeps()
	deps.Metrics = metrics.NewManager(nil, nil, nil, nil, nil)

	router := NewRouter(deps)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
