// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graftseed/graft/internal/btclient"
	"github.com/graftseed/graft/internal/database"
	"github.com/graftseed/graft/internal/fingerprint"
	"github.com/graftseed/graft/internal/models"
)

// testEnv bundles the stores of one throwaway database. File-backed for the
// same reason as the models tests: :memory: does not survive the connection
// pool.
type testEnv struct {
	db      *database.DB
	sites   *models.SiteStore
	index   *models.IndexStore
	history *models.HistoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir, err := os.MkdirTemp("", "graft-test-services-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := database.New(filepath.Join(dir, "graft.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn := db.Conn()
	return &testEnv{
		db:      db,
		sites:   models.NewSiteStore(conn),
		index:   models.NewIndexStore(conn),
		history: models.NewHistoryStore(conn),
	}
}

func (e *testEnv) addSite(t *testing.T, up models.SiteUpsert, domains ...string) {
	t.Helper()
	ctx := context.Background()

	_, err := e.sites.Upsert(ctx, up)
	require.NoError(t, err)
	require.NoError(t, e.sites.RegisterTrackerDomains(ctx, up.ID, domains))
}

func (e *testEnv) addIndexEntry(t *testing.T, fp fingerprint.ContentFingerprint, entry *models.IndexEntry) {
	t.Helper()
	ctx := context.Background()

	fpID, err := e.index.UpsertFingerprint(ctx, fp)
	require.NoError(t, err)
	entry.FingerprintID = fpID
	_, err = e.index.InsertEntry(ctx, entry)
	require.NoError(t, err)
}

// fakeClient is an in-memory download client for exercising the services
// without HTTP.
type fakeClient struct {
	id       string
	torrents []btclient.TorrentInfo
	listErr  error
	files    map[string][]btclient.TorrentFile
	filesErr map[string]error
	trackers map[string][]string

	addCalls []addCall
	addErr   error
	onAdd    func()
}

type addCall struct {
	data []byte
	opts btclient.AddTorrentOptions
}

var _ btclient.Client = (*fakeClient)(nil)

func (f *fakeClient) Type() btclient.ClientType { return btclient.ClientQBittorrent }
func (f *fakeClient) ClientID() string          { return f.id }

func (f *fakeClient) TestConnection(_ context.Context) (bool, error) { return true, nil }

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
	if err := f.filesErr[hash]; err != nil {
		return nil, err
	}
	return f.files[hash], nil
}

func (f *fakeClient) GetTorrentTrackers(_ context.Context, hash string) ([]string, error) {
	return f.trackers[hash], nil
}

func (f *fakeClient) AddTorrent(_ context.Context, torrentBytes []byte, opts btclient.AddTorrentOptions) (string, error) {
	f.addCalls = append(f.addCalls, addCall{data: torrentBytes, opts: opts})
	if f.onAdd != nil {
		f.onAdd()
	}
	if f.addErr != nil {
		return "", f.addErr
	}
	return "", nil
}

func (f *fakeClient) RemoveTorrent(_ context.Context, _ string, _ bool) error { return nil }
func (f *fakeClient) PauseTorrent(_ context.Context, _ string) error          { return nil }
func (f *fakeClient) ResumeTorrent(_ context.Context, _ string) error         { return nil }
func (f *fakeClient) RecheckTorrent(_ context.Context, _ string) error        { return nil }
