// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package btclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// QBittorrent implements Client against the WebUI API v2.x. The session
// cookie lives in the http client's jar; when a call comes back 403 the
// adapter re-logs-in and retries that call once.
type QBittorrent struct {
	cfg  Config
	http *http.Client
}

func NewQBittorrent(cfg Config) *QBittorrent {
	jar, _ := cookiejar.New(nil)
	return &QBittorrent{
		cfg: cfg,
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}
}

func (c *QBittorrent) Type() ClientType { return ClientQBittorrent }
func (c *QBittorrent) ClientID() string { return c.cfg.ID }

func (c *QBittorrent) apiURL(endpoint string) string {
	return c.cfg.BaseURL() + "/api/v2" + endpoint
}

func (c *QBittorrent) login(ctx context.Context) error {
	form := url.Values{
		"username": {c.cfg.Username},
		"password": {c.cfg.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("/auth/login"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return ErrAuthenticationFailed
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	// A successful login answers "Ok."; anything mentioning failure means
	// bad credentials even with a 200 status.
	if text := string(body); strings.Contains(text, "Fails") || strings.Contains(text, "fail") {
		return ErrAuthenticationFailed
	}

	return nil
}

// do sends the request produced by build. On a 403 it re-logs-in and
// retries once; build is called again so request bodies are fresh.
func (c *QBittorrent) do(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	req, err := build()
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}
	resp.Body.Close()

	if err := c.login(ctx); err != nil {
		return nil, err
	}

	req, err = build()
	if err != nil {
		return nil, err
	}
	resp, err = c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	return resp, nil
}

func (c *QBittorrent) get(ctx context.Context, endpoint, rawQuery string) (*http.Response, error) {
	return c.do(ctx, func() (*http.Request, error) {
		u := c.apiURL(endpoint)
		if rawQuery != "" {
			u += "?" + rawQuery
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
}

func (c *QBittorrent) postForm(ctx context.Context, endpoint string, form url.Values) error {
	encoded := form.Encode()
	resp, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL(endpoint), strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return fmt.Errorf("%w: status %s", ErrInvalidResponse, resp.Status)
	}
	return nil
}

func (c *QBittorrent) TestConnection(ctx context.Context) (bool, error) {
	if err := c.login(ctx); err != nil {
		return false, err
	}

	resp, err := c.get(ctx, "/app/version", "")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	return is2xx(resp.StatusCode), nil
}

func (c *QBittorrent) GetTorrents(ctx context.Context) ([]TorrentInfo, error) {
	resp, err := c.get(ctx, "/torrents/info", "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return nil, fmt.Errorf("%w: status %s", ErrInvalidResponse, resp.Status)
	}

	var raw []qbTorrent
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	torrents := make([]TorrentInfo, 0, len(raw))
	for _, t := range raw {
		torrents = append(torrents, t.toTorrentInfo())
	}
	return torrents, nil
}

func (c *QBittorrent) GetTorrent(ctx context.Context, hash string) (*TorrentInfo, error) {
	resp, err := c.get(ctx, "/torrents/info", "hashes="+url.QueryEscape(hash))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return nil, nil
	}

	var raw []qbTorrent
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	info := raw[0].toTorrentInfo()
	return &info, nil
}

func (c *QBittorrent) GetTorrentFiles(ctx context.Context, hash string) ([]TorrentFile, error) {
	resp, err := c.get(ctx, "/torrents/files", "hash="+url.QueryEscape(hash))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrTorrentNotFound, hash)
	}
	if !is2xx(resp.StatusCode) {
		return nil, fmt.Errorf("%w: status %s", ErrInvalidResponse, resp.Status)
	}

	var raw []qbTorrentFile
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	files := make([]TorrentFile, 0, len(raw))
	for _, f := range raw {
		files = append(files, TorrentFile{
			Name:     f.Name,
			Size:     uint64(f.Size),
			Progress: f.Progress,
		})
	}
	return files, nil
}

func (c *QBittorrent) GetTorrentTrackers(ctx context.Context, hash string) ([]string, error) {
	resp, err := c.get(ctx, "/torrents/trackers", "hash="+url.QueryEscape(hash))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrTorrentNotFound, hash)
	}
	if !is2xx(resp.StatusCode) {
		return nil, fmt.Errorf("%w: status %s", ErrInvalidResponse, resp.Status)
	}

	var raw []qbTracker
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	trackers := make([]string, 0, len(raw))
	for _, t := range raw {
		// The pseudo-entries for DHT/PeX are not real trackers.
		if t.URL == "" || t.URL == "** [DHT] **" || t.URL == "** [PeX] **" {
			continue
		}
		trackers = append(trackers, t.URL)
	}
	return trackers, nil
}

// AddTorrent uploads the metainfo blob. The WebUI response carries no hash,
// so the returned hash is always ""; callers track the hash they matched on.
func (c *QBittorrent) AddTorrent(ctx context.Context, torrentBytes []byte, opts AddTorrentOptions) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="torrents"; filename="torrent.torrent"`)
	header.Set("Content-Type", "application/x-bittorrent")
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(torrentBytes); err != nil {
		return "", err
	}

	if opts.SavePath != "" {
		_ = mw.WriteField("savepath", opts.SavePath)
	}
	if opts.Category != "" {
		_ = mw.WriteField("category", opts.Category)
	}
	if len(opts.Tags) > 0 {
		_ = mw.WriteField("tags", strings.Join(opts.Tags, ","))
	}
	if opts.Paused {
		_ = mw.WriteField("paused", "true")
	}
	if opts.SkipChecking {
		_ = mw.WriteField("skip_checking", "true")
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	payload := buf.Bytes()
	resp, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("/torrents/add"), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return "", fmt.Errorf("%w: status %s", ErrInvalidResponse, resp.Status)
	}

	return "", nil
}

func (c *QBittorrent) RemoveTorrent(ctx context.Context, hash string, deleteFiles bool) error {
	form := url.Values{
		"hashes":      {hash},
		"deleteFiles": {fmt.Sprintf("%t", deleteFiles)},
	}
	return c.postForm(ctx, "/torrents/delete", form)
}

func (c *QBittorrent) PauseTorrent(ctx context.Context, hash string) error {
	return c.postForm(ctx, "/torrents/pause", url.Values{"hashes": {hash}})
}

func (c *QBittorrent) ResumeTorrent(ctx context.Context, hash string) error {
	return c.postForm(ctx, "/torrents/resume", url.Values{"hashes": {hash}})
}

func (c *QBittorrent) RecheckTorrent(ctx context.Context, hash string) error {
	return c.postForm(ctx, "/torrents/recheck", url.Values{"hashes": {hash}})
}

func is2xx(code int) bool {
	return code >= 200 && code < 300
}

// WebUI API response types.

type qbTorrent struct {
	Hash     string  `json:"hash"`
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Progress float64 `json:"progress"`
	State    string  `json:"state"`
	SavePath string  `json:"save_path"`
	Category string  `json:"category"`
	Tags     string  `json:"tags"`
	Tracker  string  `json:"tracker"`
	AddedOn  int64   `json:"added_on"`
}

type qbTorrentFile struct {
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Progress float64 `json:"progress"`
}

type qbTracker struct {
	URL string `json:"url"`
}

func (t qbTorrent) toTorrentInfo() TorrentInfo {
	info := TorrentInfo{
		Hash:     strings.ToLower(t.Hash),
		Name:     t.Name,
		Size:     uint64(t.Size),
		Progress: t.Progress,
		State:    qbState(t.State),
		SavePath: t.SavePath,
		Category: t.Category,
		Tags:     splitTags(t.Tags),
		Tracker:  t.Tracker,
	}
	if t.AddedOn > 0 {
		added := time.Unix(t.AddedOn, 0).UTC()
		info.AddedOn = &added
	}
	return info
}

func qbState(state string) TorrentState {
	switch state {
	case "downloading", "forcedDL", "metaDL", "allocating":
		return StateDownloading
	case "uploading", "forcedUP", "stalledUP":
		return StateSeeding
	case "pausedDL", "pausedUP":
		return StatePaused
	case "checkingDL", "checkingUP", "checkingResumeData":
		return StateChecking
	case "error", "missingFiles":
		return StateError
	case "queuedDL", "queuedUP":
		return StateQueued
	case "stalledDL":
		return StateStalled
	default:
		return StateUnknown
	}
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
