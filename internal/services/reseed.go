// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/graftseed/graft/internal/btclient"
	"github.com/graftseed/graft/internal/models"
	"github.com/graftseed/graft/internal/sites"
)

const defaultRequestInterval = 500 * time.Millisecond

// ReseedMatch is one candidate for cross-seeding: a torrent present in the
// source client that the index also knows under a different site.
type ReseedMatch struct {
	InfoHash   string  `json:"info_hash"`
	TorrentID  string  `json:"torrent_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Size       uint64  `json:"size"`
	SavePath   string  `json:"save_path,omitempty"`
	SourceSite string  `json:"source_site,omitempty"`
	TargetSite string  `json:"target_site"`
	MatchType  string  `json:"match_type"`
	Confidence float64 `json:"confidence"`
}

// PreviewResult lists the matches an execute run would attempt.
type PreviewResult struct {
	Matches   []ReseedMatch `json:"matches"`
	Total     int           `json:"total"`
	TotalSize uint64        `json:"total_size"`
}

// ExecuteRequest selects what to reseed and how to add the torrents.
type ExecuteRequest struct {
	TaskID         string   `json:"task_id"`
	SourceClientID string   `json:"source_client_id"`
	TargetClientID string   `json:"target_client_id"`
	TargetSiteIDs  []string `json:"target_site_ids"`
	AddPaused      bool     `json:"add_paused"`
	SkipChecking   bool     `json:"skip_checking"`
}

// ExecuteResult summarizes one execute run. Every match lands in exactly
// one of the three counters.
type ExecuteResult struct {
	TaskID  string `json:"task_id"`
	Total   int    `json:"total"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

// ReseedService matches torrents across sites and injects them into a
// target client. Preview is read-only; Execute downloads .torrent files
// from the target sites and records every attempt in the history table.
type ReseedService struct {
	indexStore   *models.IndexStore
	siteStore    *models.SiteStore
	historyStore *models.HistoryStore
	pool         *btclient.ClientPool

	httpClient      *http.Client
	requestInterval time.Duration
	defaultPaused   bool
}

func NewReseedService(indexStore *models.IndexStore, siteStore *models.SiteStore, historyStore *models.HistoryStore, pool *btclient.ClientPool) *ReseedService {
	return &ReseedService{
		indexStore:   indexStore,
		siteStore:    siteStore,
		historyStore: historyStore,
		pool:         pool,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		requestInterval: defaultRequestInterval,
	}
}

// WithRequestInterval overrides the pause between site requests.
func (s *ReseedService) WithRequestInterval(d time.Duration) *ReseedService {
	s.requestInterval = d
	return s
}

// WithDefaultPaused makes every execute run add torrents paused, whatever
// the request says.
func (s *ReseedService) WithDefaultPaused(paused bool) *ReseedService {
	s.defaultPaused = paused
	return s
}

// loadTargetSites resolves the requested site ids to their enabled
// configs. Unknown and disabled ids drop out silently, so a match can
// only ever point at a site the operator has switched on.
func (s *ReseedService) loadTargetSites(ctx context.Context, targetSiteIDs []string) (map[string]*models.Site, error) {
	targets := make(map[string]*models.Site, len(targetSiteIDs))
	for _, id := range targetSiteIDs {
		site, err := s.siteStore.GetEnabled(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrSiteNotFound) {
				continue
			}
			return nil, errors.Wrap(err, "loading target sites")
		}
		targets[site.ID] = site
	}
	return targets, nil
}

// Preview lists the cross-seed candidates for one source client without
// touching the index, the history, or any site.
func (s *ReseedService) Preview(ctx context.Context, source btclient.Client, clientID string, targetSiteIDs []string) (*PreviewResult, error) {
	targets, err := s.loadTargetSites(ctx, targetSiteIDs)
	if err != nil {
		return nil, err
	}
	return s.preview(ctx, source, clientID, targets)
}

func (s *ReseedService) preview(ctx context.Context, source btclient.Client, clientID string, targets map[string]*models.Site) (*PreviewResult, error) {
	torrents, err := source.GetTorrents(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing source torrents")
	}

	matcher, err := buildMatcher(ctx, s.indexStore)
	if err != nil {
		return nil, err
	}

	ident, err := newIdentifier(ctx, s.siteStore)
	if err != nil {
		return nil, err
	}

	result := &PreviewResult{Matches: []ReseedMatch{}}
	for _, t := range torrents {
		fp := torrentFingerprint(ctx, s.pool, source, clientID, t)

		trackers := t.Trackers
		if len(trackers) == 0 {
			if fetched, err := source.GetTorrentTrackers(ctx, t.Hash); err == nil {
				trackers = fetched
			}
		}
		sourceSite := ""
		if id, ok := ident.IdentifyFromTrackers(trackers); ok {
			sourceSite = id.SiteID
		}

		for _, match := range matcher.FindCrossSiteMatches(fp, sourceSite) {
			e := match.Entry
			if _, ok := targets[e.SiteID]; !ok {
				continue
			}

			name := e.Name
			if name == "" {
				name = t.Name
			}
			result.Matches = append(result.Matches, ReseedMatch{
				InfoHash:   e.InfoHash,
				TorrentID:  e.TorrentID,
				Name:       name,
				Size:       e.Fingerprint.TotalSize,
				SavePath:   t.SavePath,
				SourceSite: sourceSite,
				TargetSite: e.SiteID,
				MatchType:  match.Result.String(),
				Confidence: match.Result.Confidence(),
			})
			result.TotalSize += e.Fingerprint.TotalSize
		}
	}

	result.Total = len(result.Matches)
	return result, nil
}

// Execute runs the preview and attempts every match against the target
// client. Matches already present in the target are skipped silently;
// every download or add attempt is recorded in the history, success or
// not. Matches are processed strictly in preview order, one at a time,
// with a pause after each site request.
func (s *ReseedService) Execute(ctx context.Context, req ExecuteRequest, source, target btclient.Client) (*ExecuteResult, error) {
	// One site load serves the whole run: the preview filter and the
	// download step see the same configs.
	targets, err := s.loadTargetSites(ctx, req.TargetSiteIDs)
	if err != nil {
		return nil, err
	}

	// Previews are cheap and the source may have changed, so always re-run.
	preview, err := s.preview(ctx, source, req.SourceClientID, targets)
	if err != nil {
		return nil, err
	}

	existing, err := target.GetTorrents(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing target torrents")
	}
	existingHashes := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		existingHashes[strings.ToLower(t.Hash)] = struct{}{}
	}

	// A supplied task id groups the run into the caller's batch.
	taskID := req.TaskID
	if taskID == "" {
		taskID = uuid.New().String()
	}
	result := &ExecuteResult{TaskID: taskID, Total: preview.Total}

	log.Info().
		Str("taskID", taskID).
		Str("sourceClientID", req.SourceClientID).
		Str("targetClientID", req.TargetClientID).
		Int("matches", preview.Total).
		Str("totalSize", models.FormatSize(preview.TotalSize)).
		Msg("Reseed execute started")

	for i, m := range preview.Matches {
		if _, ok := existingHashes[strings.ToLower(m.InfoHash)]; ok {
			result.Skipped++
			continue
		}

		site, ok := targets[m.TargetSite]
		if !ok {
			s.fail(ctx, result, taskID, m, "Site config not found")
			continue
		}
		if site.Passkey == "" {
			s.fail(ctx, result, taskID, m, "No passkey configured")
			continue
		}
		if m.TorrentID == "" {
			s.fail(ctx, result, taskID, m, "No torrent ID available")
			continue
		}

		data, err := s.download(ctx, site, m.TorrentID)
		if err != nil {
			s.fail(ctx, result, taskID, m, "Download failed: "+err.Error())
		} else if _, err := target.AddTorrent(ctx, data, btclient.AddTorrentOptions{
			SavePath:     m.SavePath,
			Paused:       req.AddPaused || s.defaultPaused,
			SkipChecking: req.SkipChecking,
		}); err != nil {
			s.fail(ctx, result, taskID, m, "Add failed: "+err.Error())
		} else {
			result.Success++
			s.record(ctx, taskID, m, models.ReseedStatusSuccess, "")
		}

		// The site just saw a request, pause before the next match.
		// TODO: derive the pause from the target site's rate_limit_rpm
		// instead of the flat interval.
		if i < len(preview.Matches)-1 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(s.requestInterval):
			}
		}
	}

	log.Info().
		Str("taskID", taskID).
		Int("total", result.Total).
		Int("success", result.Success).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("Reseed execute finished")

	return result, nil
}

// History returns recent reseed attempts, newest first.
func (s *ReseedService) History(ctx context.Context, status string, limit, offset int) ([]*models.ReseedRecord, error) {
	records, err := s.historyStore.List(ctx, limit, offset, status)
	if err != nil {
		return nil, errors.Wrap(err, "loading reseed history")
	}
	return records, nil
}

func (s *ReseedService) fail(ctx context.Context, result *ExecuteResult, taskID string, m ReseedMatch, message string) {
	result.Failed++
	s.record(ctx, taskID, m, models.ReseedStatusFailed, message)
}

func (s *ReseedService) record(ctx context.Context, taskID string, m ReseedMatch, status, message string) {
	// The write outlives a cancelled caller: a successful add with no
	// history row would be an untracked reseed.
	rec := &models.ReseedRecord{
		TaskID:     taskID,
		InfoHash:   m.InfoHash,
		SourceSite: m.SourceSite,
		TargetSite: m.TargetSite,
		Status:     status,
		Message:    message,
	}
	if err := s.historyStore.Record(context.WithoutCancel(ctx), rec); err != nil {
		log.Error().Err(err).Str("infoHash", m.InfoHash).Str("targetSite", m.TargetSite).Msg("Failed to record reseed history")
	}
}

// download fetches the .torrent for a match from its target site.
func (s *ReseedService) download(ctx context.Context, site *models.Site, torrentID string) ([]byte, error) {
	cookie, err := s.siteStore.DecryptedCookie(site)
	if err != nil {
		return nil, errors.Wrap(err, "decoding site cookie")
	}

	tmpl := sites.NewTemplate(sites.Config{
		ID:              site.ID,
		Name:            site.Name,
		BaseURL:         site.BaseURL,
		TemplateType:    sites.TemplateType(site.TemplateType),
		DownloadPattern: site.DownloadPattern,
		Passkey:         site.Passkey,
		Cookie:          cookie,
		Enabled:         site.Enabled,
		RateLimitRPM:    site.RateLimitRPM,
	})
	if g, ok := tmpl.(*sites.Gazelle); ok && site.Authkey != "" {
		g.WithAuthkey(site.Authkey)
	}

	return tmpl.Download(ctx, s.httpClient, torrentID)
}
