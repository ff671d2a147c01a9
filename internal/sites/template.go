// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sites identifies private trackers from announce URLs and downloads
// .torrent files through per-framework site templates (NexusPHP, Unit3D,
// Gazelle).
package sites

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingPasskey  = errors.New("missing passkey")
	ErrMissingCookie   = errors.New("missing cookie")
	ErrDownloadFailed  = errors.New("download failed")
	ErrInvalidResponse = errors.New("invalid response")
)

// TemplateType names the site framework a tracker runs on.
type TemplateType string

const (
	TemplateNexusPHP TemplateType = "nexusphp"
	TemplateUnit3D   TemplateType = "unit3d"
	TemplateGazelle  TemplateType = "gazelle"
)

// ParseTemplateType accepts the canonical names plus "nexus" as a shorthand.
func ParseTemplateType(s string) (TemplateType, error) {
	switch strings.ToLower(s) {
	case "nexusphp", "nexus":
		return TemplateNexusPHP, nil
	case "unit3d":
		return TemplateUnit3D, nil
	case "gazelle":
		return TemplateGazelle, nil
	}
	return "", fmt.Errorf("%w: unknown template type %q", ErrInvalidResponse, s)
}

// DefaultDownloadPattern returns the download URL pattern a framework uses
// when a site does not override it.
func DefaultDownloadPattern(t TemplateType) string {
	switch t {
	case TemplateUnit3D:
		return "/torrent/download/{id}.{passkey}"
	case TemplateGazelle:
		return "/torrents.php?action=download&id={id}&authkey={authkey}&torrent_pass={passkey}"
	default:
		return "/download.php?id={id}&passkey={passkey}"
	}
}

// Config describes one tracker site: how to recognize its announce URLs and
// how to fetch .torrent files from it. Passkey and Cookie are empty when not
// configured.
type Config struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	BaseURL         string       `json:"base_url"`
	TemplateType    TemplateType `json:"template_type"`
	TrackerDomains  []string     `json:"tracker_domains"`
	DownloadPattern string       `json:"download_pattern"`
	Passkey         string       `json:"passkey,omitempty"`
	Cookie          string       `json:"cookie,omitempty"`
	Enabled         bool         `json:"enabled"`
	RateLimitRPM    int          `json:"rate_limit_rpm,omitempty"`
}

// Template is the per-framework strategy for talking to a site.
type Template interface {
	Config() *Config
	Type() TemplateType

	// DownloadURL builds the absolute download URL for a torrent id,
	// substituting the site's secrets into the download pattern.
	DownloadURL(torrentID string) (string, error)

	// Download fetches the raw .torrent bytes for a torrent id. The bytes
	// are validated just enough to reject HTML error pages, not parsed.
	Download(ctx context.Context, client *http.Client, torrentID string) ([]byte, error)
}

// NewTemplate picks the template implementation for a site config. Unknown
// template types fall back to NexusPHP, the most common framework.
func NewTemplate(cfg Config) Template {
	switch cfg.TemplateType {
	case TemplateUnit3D:
		return NewUnit3D(cfg)
	case TemplateGazelle:
		return NewGazelle(cfg)
	default:
		return NewNexusPHP(cfg)
	}
}

const userAgent = "Graft/1.0"

func (c *Config) downloadPattern(t TemplateType) string {
	if c.DownloadPattern != "" {
		return c.DownloadPattern
	}
	return DefaultDownloadPattern(t)
}

func statusReason(code int) string {
	if reason := http.StatusText(code); reason != "" {
		return reason
	}
	return "Unknown"
}

// looksLikeTorrent reports whether body plausibly starts a bencoded metainfo
// dictionary. Contents past the first byte are deliberately left opaque.
func looksLikeTorrent(body []byte) bool {
	return len(body) > 0 && body[0] == 'd'
}
