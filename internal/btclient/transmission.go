// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package btclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Transmission implements Client over the Transmission JSON-RPC protocol.
// The CSRF session id is cached across calls; a 409 response carries a new
// one and the call is retried once with it.
type Transmission struct {
	cfg  Config
	http *http.Client

	mu        sync.RWMutex
	sessionID string
}

func NewTransmission(cfg Config) *Transmission {
	return &Transmission{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Transmission) Type() ClientType { return ClientTransmission }
func (c *Transmission) ClientID() string { return c.cfg.ID }

func (c *Transmission) rpcURL() string {
	return c.cfg.BaseURL() + "/transmission/rpc"
}

type rpcRequest struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments"`
}

type rpcEnvelope struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

// rpcCall posts one RPC request and decodes its arguments into out when out
// is non-nil.
func (c *Transmission) rpcCall(ctx context.Context, method string, args, out any) error {
	payload, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL(), bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		c.mu.RLock()
		if c.sessionID != "" {
			req.Header.Set("X-Transmission-Session-Id", c.sessionID)
		}
		c.mu.RUnlock()

		if c.cfg.Username != "" && c.cfg.Password != "" {
			req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}

		if resp.StatusCode == http.StatusConflict && attempt == 0 {
			sessionID := resp.Header.Get("X-Transmission-Session-Id")
			resp.Body.Close()

			c.mu.Lock()
			c.sessionID = sessionID
			c.mu.Unlock()
			continue
		}

		err = c.readEnvelope(resp, out)
		resp.Body.Close()
		return err
	}
}

func (c *Transmission) readEnvelope(resp *http.Response, out any) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuthenticationFailed
	}
	if !is2xx(resp.StatusCode) {
		return fmt.Errorf("%w: status %s", ErrInvalidResponse, resp.Status)
	}

	var envelope rpcEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if envelope.Result != "success" {
		return fmt.Errorf("%w: %s", ErrInvalidResponse, envelope.Result)
	}

	if out == nil {
		return nil
	}
	if len(envelope.Arguments) == 0 {
		return fmt.Errorf("%w: missing arguments", ErrInvalidResponse)
	}
	if err := json.Unmarshal(envelope.Arguments, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

var torrentGetFields = []string{
	"id", "hashString", "name", "totalSize", "percentDone",
	"status", "downloadDir", "labels", "trackers", "addedDate", "files",
}

func (c *Transmission) TestConnection(ctx context.Context) (bool, error) {
	var stats trSessionStats
	if err := c.rpcCall(ctx, "session-stats", struct{}{}, &stats); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Transmission) GetTorrents(ctx context.Context) ([]TorrentInfo, error) {
	args := map[string]any{"fields": torrentGetFields}

	var resp trTorrentsResponse
	if err := c.rpcCall(ctx, "torrent-get", args, &resp); err != nil {
		return nil, err
	}

	torrents := make([]TorrentInfo, 0, len(resp.Torrents))
	for _, t := range resp.Torrents {
		torrents = append(torrents, t.toTorrentInfo())
	}
	return torrents, nil
}

func (c *Transmission) GetTorrent(ctx context.Context, hash string) (*TorrentInfo, error) {
	args := map[string]any{
		"ids":    []string{hash},
		"fields": torrentGetFields,
	}

	var resp trTorrentsResponse
	if err := c.rpcCall(ctx, "torrent-get", args, &resp); err != nil {
		return nil, err
	}
	if len(resp.Torrents) == 0 {
		return nil, nil
	}

	info := resp.Torrents[0].toTorrentInfo()
	return &info, nil
}

func (c *Transmission) GetTorrentFiles(ctx context.Context, hash string) ([]TorrentFile, error) {
	args := map[string]any{
		"ids":    []string{hash},
		"fields": []string{"files", "fileStats"},
	}

	var resp trTorrentsResponse
	if err := c.rpcCall(ctx, "torrent-get", args, &resp); err != nil {
		return nil, err
	}
	if len(resp.Torrents) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTorrentNotFound, hash)
	}

	files := make([]TorrentFile, 0, len(resp.Torrents[0].Files))
	for _, f := range resp.Torrents[0].Files {
		files = append(files, f.toTorrentFile())
	}
	return files, nil
}

func (c *Transmission) GetTorrentTrackers(ctx context.Context, hash string) ([]string, error) {
	args := map[string]any{
		"ids":    []string{hash},
		"fields": []string{"trackers"},
	}

	var resp trTorrentsResponse
	if err := c.rpcCall(ctx, "torrent-get", args, &resp); err != nil {
		return nil, err
	}
	if len(resp.Torrents) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTorrentNotFound, hash)
	}

	trackers := make([]string, 0, len(resp.Torrents[0].Trackers))
	for _, t := range resp.Torrents[0].Trackers {
		trackers = append(trackers, t.Announce)
	}
	return trackers, nil
}

func (c *Transmission) AddTorrent(ctx context.Context, torrentBytes []byte, opts AddTorrentOptions) (string, error) {
	args := map[string]any{
		"metainfo": base64.StdEncoding.EncodeToString(torrentBytes),
		"paused":   opts.Paused,
	}
	if opts.SavePath != "" {
		args["download-dir"] = opts.SavePath
	}
	if len(opts.Tags) > 0 {
		args["labels"] = opts.Tags
	}

	var resp trAddResponse
	if err := c.rpcCall(ctx, "torrent-add", args, &resp); err != nil {
		return "", err
	}

	// "torrent-duplicate" means the torrent was already there, which is
	// as good as added for cross-seeding purposes.
	added := resp.TorrentAdded
	if added == nil {
		added = resp.TorrentDuplicate
	}
	if added == nil {
		return "", nil
	}
	return strings.ToLower(added.HashString), nil
}

func (c *Transmission) RemoveTorrent(ctx context.Context, hash string, deleteFiles bool) error {
	args := map[string]any{
		"ids":               []string{hash},
		"delete-local-data": deleteFiles,
	}
	return c.rpcCall(ctx, "torrent-remove", args, nil)
}

func (c *Transmission) PauseTorrent(ctx context.Context, hash string) error {
	return c.rpcCall(ctx, "torrent-stop", map[string]any{"ids": []string{hash}}, nil)
}

func (c *Transmission) ResumeTorrent(ctx context.Context, hash string) error {
	return c.rpcCall(ctx, "torrent-start", map[string]any{"ids": []string{hash}}, nil)
}

func (c *Transmission) RecheckTorrent(ctx context.Context, hash string) error {
	return c.rpcCall(ctx, "torrent-verify", map[string]any{"ids": []string{hash}}, nil)
}

// RPC response types.

type trSessionStats struct {
	ActiveTorrentCount int `json:"activeTorrentCount"`
}

type trTorrentsResponse struct {
	Torrents []trTorrent `json:"torrents"`
}

type trTorrent struct {
	HashString  string      `json:"hashString"`
	Name        string      `json:"name"`
	TotalSize   int64       `json:"totalSize"`
	PercentDone float64     `json:"percentDone"`
	Status      int         `json:"status"`
	DownloadDir string      `json:"downloadDir"`
	Labels      []string    `json:"labels"`
	Trackers    []trTracker `json:"trackers"`
	AddedDate   int64       `json:"addedDate"`
	Files       []trFile    `json:"files"`
}

type trTracker struct {
	Announce string `json:"announce"`
}

type trFile struct {
	Name           string `json:"name"`
	Length         int64  `json:"length"`
	BytesCompleted int64  `json:"bytesCompleted"`
}

type trAddResponse struct {
	TorrentAdded     *trAddedTorrent `json:"torrent-added"`
	TorrentDuplicate *trAddedTorrent `json:"torrent-duplicate"`
}

type trAddedTorrent struct {
	HashString string `json:"hashString"`
}

func (t trTorrent) toTorrentInfo() TorrentInfo {
	trackers := make([]string, 0, len(t.Trackers))
	for _, tr := range t.Trackers {
		trackers = append(trackers, tr.Announce)
	}

	files := make([]TorrentFile, 0, len(t.Files))
	for _, f := range t.Files {
		files = append(files, f.toTorrentFile())
	}

	info := TorrentInfo{
		Hash:     strings.ToLower(t.HashString),
		Name:     t.Name,
		Size:     uint64(t.TotalSize),
		Progress: t.PercentDone,
		State:    trState(t.Status),
		SavePath: t.DownloadDir,
		Tags:     t.Labels,
		Trackers: trackers,
		Files:    files,
	}
	if len(trackers) > 0 {
		info.Tracker = trackers[0]
	}
	if t.AddedDate > 0 {
		added := time.Unix(t.AddedDate, 0).UTC()
		info.AddedOn = &added
	}
	return info
}

func (f trFile) toTorrentFile() TorrentFile {
	progress := 0.0
	if f.Length > 0 {
		progress = float64(f.BytesCompleted) / float64(f.Length)
	}
	return TorrentFile{
		Name:     f.Name,
		Size:     uint64(f.Length),
		Progress: progress,
	}
}

// trState maps Transmission status codes: 0 stopped, 1 queued to verify,
// 2 verifying, 3 queued to download, 4 downloading, 5 queued to seed,
// 6 seeding.
func trState(status int) TorrentState {
	switch status {
	case 0:
		return StatePaused
	case 1, 2:
		return StateChecking
	case 3, 4:
		return StateDownloading
	case 5, 6:
		return StateSeeding
	default:
		return StateUnknown
	}
}
