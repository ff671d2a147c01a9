// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/graftseed/graft/internal/btclient"
	"github.com/graftseed/graft/internal/fingerprint"
	"github.com/graftseed/graft/internal/models"
	"github.com/graftseed/graft/internal/sites"
)

// ImportResult summarizes a single import run.
type ImportResult struct {
	Total        int `json:"total"`
	Imported     int `json:"imported"`
	Skipped      int `json:"skipped"`
	Unrecognized int `json:"unrecognized"`
}

// IndexService builds and maintains the torrent index that cross-seed
// matching runs against. Imports are sequential: one torrent at a time,
// so a slow download client cannot starve the rest of the service.
type IndexService struct {
	indexStore *models.IndexStore
	siteStore  *models.SiteStore
	pool       *btclient.ClientPool
}

func NewIndexService(indexStore *models.IndexStore, siteStore *models.SiteStore, pool *btclient.ClientPool) *IndexService {
	return &IndexService{
		indexStore: indexStore,
		siteStore:  siteStore,
		pool:       pool,
	}
}

// ImportFromClient walks every torrent in the given client and records the
// ones whose tracker belongs to a known site. Torrents already present for
// the same site are counted as skipped, torrents with no recognizable
// tracker as unrecognized.
func (s *IndexService) ImportFromClient(ctx context.Context, client btclient.Client, clientID string) (*ImportResult, error) {
	torrents, err := client.GetTorrents(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing torrents")
	}

	ident, err := newIdentifier(ctx, s.siteStore)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Total: len(torrents)}
	for _, t := range torrents {
		trackers := t.Trackers
		if len(trackers) == 0 {
			trackers, err = client.GetTorrentTrackers(ctx, t.Hash)
			if err != nil {
				log.Debug().Err(err).Str("hash", t.Hash).Msg("Failed to fetch trackers, torrent will count as unrecognized")
				trackers = nil
			}
		}

		id, ok := ident.IdentifyFromTrackers(trackers)
		if !ok {
			result.Unrecognized++
			continue
		}

		fp := torrentFingerprint(ctx, s.pool, client, clientID, t)

		exists, err := s.indexStore.HasEntry(ctx, t.Hash, id.SiteID)
		if err != nil {
			return nil, errors.Wrap(err, "checking index entry")
		}
		if exists {
			result.Skipped++
			continue
		}

		fpID, err := s.indexStore.UpsertFingerprint(ctx, fp)
		if err != nil {
			return nil, errors.Wrap(err, "storing fingerprint")
		}

		if _, err := s.indexStore.InsertEntry(ctx, &models.IndexEntry{
			InfoHash:      t.Hash,
			SiteID:        id.SiteID,
			TorrentID:     id.TorrentID,
			FingerprintID: fpID,
			Name:          t.Name,
			Size:          t.Size,
			SavePath:      t.SavePath,
			SourceClient:  clientID,
		}); err != nil {
			return nil, errors.Wrap(err, "inserting index entry")
		}
		result.Imported++
	}

	log.Info().
		Str("clientID", clientID).
		Int("total", result.Total).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("unrecognized", result.Unrecognized).
		Msg("Index import finished")

	return result, nil
}

// BuildMatcher loads the persistent index into an in-memory matcher.
func (s *IndexService) BuildMatcher(ctx context.Context) (*fingerprint.Matcher, error) {
	return buildMatcher(ctx, s.indexStore)
}

// Clear drops the whole index including fingerprints.
func (s *IndexService) Clear(ctx context.Context) error {
	if err := s.indexStore.Clear(ctx); err != nil {
		return errors.Wrap(err, "clearing index")
	}
	log.Info().Msg("Index cleared")
	return nil
}

// ClearBySite drops the index entries of one site. Fingerprints referenced
// only by those entries stay behind as orphans until the next full clear,
// re-imports reuse them.
func (s *IndexService) ClearBySite(ctx context.Context, siteID string) error {
	if err := s.indexStore.ClearBySite(ctx, siteID); err != nil {
		return errors.Wrapf(err, "clearing index for site %s", siteID)
	}
	log.Info().Str("siteID", siteID).Msg("Index cleared for site")
	return nil
}

// Stats returns the entry count and per-site breakdown.
func (s *IndexService) Stats(ctx context.Context) (*models.IndexStats, error) {
	stats, err := s.indexStore.Stats(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading index stats")
	}
	return stats, nil
}

// newIdentifier returns a tracker identifier seeded with the builtin domain
// table plus every registered custom domain.
func newIdentifier(ctx context.Context, siteStore *models.SiteStore) (*sites.Identifier, error) {
	ident := sites.NewIdentifier()
	domains, err := siteStore.TrackerDomains(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading tracker domains")
	}
	for domain, siteID := range domains {
		ident.RegisterSite(domain, siteID)
	}
	return ident, nil
}

// buildMatcher joins index entries to their fingerprints and loads them
// into a fresh matcher.
func buildMatcher(ctx context.Context, store *models.IndexStore) (*fingerprint.Matcher, error) {
	entries, err := store.Entries(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading index entries")
	}

	m := fingerprint.NewMatcher()
	for _, e := range entries {
		m.Add(e)
	}
	return m, nil
}

// torrentFingerprint computes the fingerprint for one torrent. File listings
// are served from the pool cache when possible; when the client cannot
// produce them at all the fingerprint degrades to size-only.
func torrentFingerprint(ctx context.Context, pool *btclient.ClientPool, client btclient.Client, clientID string, t btclient.TorrentInfo) fingerprint.ContentFingerprint {
	files := t.Files
	if len(files) == 0 && pool != nil {
		if cached, ok := pool.CachedFiles(clientID, t.Hash); ok {
			files = cached
		}
	}
	if len(files) == 0 {
		fetched, err := client.GetTorrentFiles(ctx, t.Hash)
		if err != nil || len(fetched) == 0 {
			if err != nil {
				log.Debug().Err(err).Str("hash", t.Hash).Msg("File listing unavailable, using size-only fingerprint")
			}
			return fingerprint.FromSize(t.Size, 1, t.Size)
		}
		files = fetched
		if pool != nil {
			pool.CacheFiles(clientID, t.Hash, files)
		}
	}

	ffs := make([]fingerprint.File, 0, len(files))
	for _, f := range files {
		ffs = append(ffs, fingerprint.File{Name: f.Name, Size: f.Size})
	}
	return fingerprint.FromFiles(ffs)
}
