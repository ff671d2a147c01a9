// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sites

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Gazelle covers the framework used by music trackers such as Redacted and
// Orpheus. Downloads need an authkey in addition to the torrent_pass
// passkey; the authkey substitutes as empty when not set.
type Gazelle struct {
	cfg     Config
	authkey string
}

func NewGazelle(cfg Config) *Gazelle {
	return &Gazelle{cfg: cfg}
}

// WithAuthkey sets the per-user authkey substituted into download URLs.
func (t *Gazelle) WithAuthkey(authkey string) *Gazelle {
	t.authkey = authkey
	return t
}

func (t *Gazelle) Config() *Config    { return &t.cfg }
func (t *Gazelle) Type() TemplateType { return TemplateGazelle }

func (t *Gazelle) DownloadURL(torrentID string) (string, error) {
	if t.cfg.Passkey == "" {
		return "", ErrMissingPasskey
	}

	path := strings.NewReplacer(
		"{id}", torrentID,
		"{authkey}", t.authkey,
		"{passkey}", t.cfg.Passkey,
	).Replace(t.cfg.downloadPattern(TemplateGazelle))

	return t.cfg.BaseURL + path, nil
}

func (t *Gazelle) Download(ctx context.Context, client *http.Client, torrentID string) ([]byte, error) {
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
	req.Header.Set("User-Agent", userAgent)

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

	if !looksLikeTorrent(body) {
		// Gazelle reports failures as JSON; surface the body so the
		// caller sees the site's own error message.
		if utf8.Valid(body) {
			text := string(body)
			if strings.Contains(text, "error") || strings.Contains(text, "failure") {
				return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, text)
			}
		}
		return nil, fmt.Errorf("%w: invalid torrent file format", ErrInvalidResponse)
	}

	return body, nil
}
