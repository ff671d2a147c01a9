// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sites

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// NexusPHP covers the framework most Chinese private trackers run on.
// Downloads authenticate with a passkey in the URL; a session cookie is
// optional but helps on sites that gate download.php behind a login.
type NexusPHP struct {
	cfg Config
}

func NewNexusPHP(cfg Config) *NexusPHP {
	return &NexusPHP{cfg: cfg}
}

func (t *NexusPHP) Config() *Config    { return &t.cfg }
func (t *NexusPHP) Type() TemplateType { return TemplateNexusPHP }

func (t *NexusPHP) DownloadURL(torrentID string) (string, error) {
	if t.cfg.Passkey == "" {
		return "", ErrMissingPasskey
	}

	path := strings.NewReplacer(
		"{id}", torrentID,
		"{passkey}", t.cfg.Passkey,
	).Replace(t.cfg.downloadPattern(TemplateNexusPHP))

	return t.cfg.BaseURL + path, nil
}

func (t *NexusPHP) Download(ctx context.Context, client *http.Client, torrentID string) ([]byte, error) {
	url, err := t.DownloadURL(torrentID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if t.cfg.Cookie != "" {
		req.Header.Set("Cookie", t.cfg.Cookie)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrDownloadFailed, resp.StatusCode, statusReason(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// An HTML response is an error page, most often the login prompt a
	// site serves when the cookie is missing or expired.
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		text := string(body)
		if strings.Contains(text, "login") || strings.Contains(text, "登录") {
			return nil, ErrMissingCookie
		}
		return nil, fmt.Errorf("%w: received HTML instead of torrent file", ErrInvalidResponse)
	}

	if !looksLikeTorrent(body) {
		return nil, fmt.Errorf("%w: invalid torrent file format", ErrInvalidResponse)
	}

	return body, nil
}
