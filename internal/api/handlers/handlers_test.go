package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graftseed/graft/internal/btclient"
	"github.com/graftseed/graft/internal/database"
	"github.com/graftseed/graft/internal/models"
	"github.com/graftseed/graft/internal/services"
)

// handlerEnv bundles the stores of one throwaway database. File-backed
// because :memory: does not survive the connection pool.
type handlerEnv struct {
	db      *database.DB
	clients *models.ClientStore
	sites   *models.SiteStore
	index   *models.IndexStore
	history *models.HistoryStore
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	dir, err := os.MkdirTemp("", "graft-test-handlers-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := database.New(filepath.Join(dir, "graft.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn := db.Conn()
	return &handlerEnv{
		db:      db,
		clients: models.NewClientStore(conn),
		sites:   models.NewSiteStore(conn),
		index:   models.NewIndexStore(conn),
		history: models.NewHistoryStore(conn),
	}
}

// newTestRouter wires the handlers the same way the real router does, with
// the pool swapped for a fake provider.
func newTestRouter(env *handlerEnv, provider ClientProvider) *chi.Mux {
	clientsHandler := NewClientsHandler(env.clients, provider)
	sitesHandler := NewSitesHandler(env.sites)
	indexHandler := NewIndexHandler(services.NewIndexService(env.index, env.sites, nil), provider)
	reseedHandler := NewReseedHandler(services.NewReseedService(env.index, env.sites, env.history, nil), provider)
	statsHandler := NewStatsHandler(env.clients, env.sites, env.index, env.history)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", clientsHandler.List)
			r.Post("/", clientsHandler.Create)
			r.Route("/{clientID}", func(r chi.Router) {
				r.Get("/", clientsHandler.Get)
				r.Put("/", clientsHandler.Update)
				r.Delete("/", clientsHandler.Delete)
				r.Post("/test", clientsHandler.Test)
				r.Get("/torrents", clientsHandler.Torrents)
			})
		})
		r.Route("/sites", func(r chi.Router) {
			r.Get("/", sitesHandler.List)
			r.Post("/", sitesHandler.Create)
			r.Get("/available", sitesHandler.Available)
			r.Route("/{siteID}", func(r chi.Router) {
				r.Get("/", sitesHandler.Get)
				r.Put("/", sitesHandler.Update)
				r.Delete("/", sitesHandler.Delete)
			})
		})
		r.Route("/index", func(r chi.Router) {
			r.Get("/stats", indexHandler.Stats)
			r.Post("/import/{clientID}", indexHandler.Import)
			r.Delete("/", indexHandler.Clear)
			r.Delete("/{siteID}", indexHandler.ClearBySite)
		})
		r.Route("/reseed", func(r chi.Router) {
			r.Post("/preview", reseedHandler.Preview)
			r.Post("/execute", reseedHandler.Execute)
			r.Get("/history", reseedHandler.History)
		})
		r.Get("/stats", statsHandler.Get)
	})
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()

	require.Equal(t, status, rec.Code, "unexpected status, body: %s", rec.Body.String())
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, message, body["error"])
}

// fakeProvider stands in for the client pool. When byID is set, lookups go
// through it and misses fail like the real pool does; otherwise every id
// resolves to client.
type fakeProvider struct {
	client  btclient.Client
	byID    map[string]btclient.Client
	err     error
	removed []string
}

var _ ClientProvider = (*fakeProvider)(nil)

func (f *fakeProvider) GetClient(_ context.Context, clientID string) (btclient.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.byID != nil {
		c, ok := f.byID[clientID]
		if !ok {
			return nil, fmt.Errorf("failed to get client config: %w", models.ErrClientNotFound)
		}
		return c, nil
	}
	return f.client, nil
}

func (f *fakeProvider) RemoveClient(clientID string) {
	f.removed = append(f.removed, clientID)
}

// fakeClient is the minimal download client the handler tests need.
type fakeClient struct {
	id       string
	torrents []btclient.TorrentInfo
	listErr  error
	testOK   bool
	testErr  error
	trackers map[string][]string
	files    map[string][]btclient.TorrentFile
}

var _ btclient.Client = (*fakeClient)(nil)

func (f *fakeClient) Type() btclient.ClientType { return btclient.ClientQBittorrent }
func (f *fakeClient) ClientID() string          { return f.id }

func (f *fakeClient) TestConnection(_ context.Context) (bool, error) {
	return f.testOK, f.testErr
}

func (f *fakeClient) GetTorrents(_ context.Context) ([]btclient.TorrentInfo, error) {
	return f.torrents, f.listErr
}

func (f *fakeClient) GetTorrent(_ context.Context, hash string) (*btclient.TorrentInfo, error) {
	for i := range f.torrents {
		if f.torrents[i].Hash == hash {
			return &f.torrents[i], nil
		}
	}
	return nil, nil
}

func (f *fakeClient) GetTorrentFiles(_ context.Context, hash string) ([]btclient.TorrentFile, error) {
	return f.files[hash], nil
}

func (f *fakeClient) GetTorrentTrackers(_ context.Context, hash string) ([]string, error) {
	return f.trackers[hash], nil
}

func (f *fakeClient) AddTorrent(_ context.Context, _ []byte, _ btclient.AddTorrentOptions) (string, error) {
	return "", nil
}

func (f *fakeClient) RemoveTorrent(_ context.Context, _ string, _ bool) error { return nil }
func (f *fakeClient) PauseTorrent(_ context.Context, _ string) error          { return nil }
func (f *fakeClient) ResumeTorrent(_ context.Context, _ string) error         { return nil }
func (f *fakeClient) RecheckTorrent(_ context.Context, _ string) error        { return nil }
