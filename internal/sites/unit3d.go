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

// Unit3D covers the modern framework behind sites like Blutopia and Aither.
// The passkey (the site's RSS key) is encoded into the download path rather
// than a query parameter.
type Unit3D struct {
	cfg Config
}

func NewUnit3D(cfg Config) *Unit3D {
	return &Unit3D{cfg: cfg}
}

func (t *Unit3D) Config() *Config    { return &t.cfg }
func (t *Unit3D) Type() TemplateType { return TemplateUnit3D }

func (t *Unit3D) DownloadURL(torrentID string) (string, error) {
	if t.cfg.Passkey == "" {
		return "", ErrMissingPasskey
	}

	path := strings.NewReplacer(
		"{id}", torrentID,
		"{passkey}", t.cfg.Passkey,
	).Replace(t.cfg.downloadPattern(TemplateUnit3D))

	return t.cfg.BaseURL + path, nil
}

func (t *Unit3D) Download(ctx context.Context, client *http.Client, torrentID string) ([]byte, error) {
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
		return nil, fmt.Errorf("%w: invalid torrent file format", ErrInvalidResponse)
	}

	return body, nil
}
