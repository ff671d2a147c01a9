// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyBuiltinSites(t *testing.T) {
	identifier := NewIdentifier()

	tests := []struct {
		name       string
		trackerURL string
		siteID     string
		torrentID  string
	}{
		{
			name:       "mteam announce",
			trackerURL: "https://kp.m-team.cc/announce.php?passkey=abc123",
			siteID:     "mteam",
		},
		{
			name:       "torrent id from query",
			trackerURL: "https://hdsky.me/announce.php?passkey=abc&torrent_id=12345",
			siteID:     "hdsky",
			torrentID:  "12345",
		},
		{
			name:       "torrent id from tid key",
			trackerURL: "https://ourbits.club/announce.php?tid=777",
			siteID:     "ourbits",
			torrentID:  "777",
		},
		{
			name:       "torrent id from path segment",
			trackerURL: "https://blutopia.cc/announce/98765",
			siteID:     "blutopia",
			torrentID:  "98765",
		},
		{
			name:       "subdomain falls back to base domain",
			trackerURL: "https://tracker.hdsky.me/announce.php?passkey=x",
			siteID:     "hdsky",
		},
		{
			name:       "three label registered domain",
			trackerURL: "https://announce.pt.hdupt.com/announce.php",
			siteID:     "hdupt",
		},
		{
			name:       "tracker subdomain of ttg",
			trackerURL: "https://t.totheglory.im/announce",
			siteID:     "ttg",
		},
		{
			name:       "gazelle alias domain",
			trackerURL: "https://flacsfor.me/abc123def/announce",
			siteID:     "redacted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ident, ok := identifier.Identify(tt.trackerURL)
			require.True(t, ok, "expected %q to be identified", tt.trackerURL)
			assert.Equal(t, tt.siteID, ident.SiteID)
			assert.Equal(t, tt.torrentID, ident.TorrentID)
		})
	}
}

func TestIdentifyUnknownSite(t *testing.T) {
	identifier := NewIdentifier()

	_, ok := identifier.Identify("https://unknown-site.com/announce")
	assert.False(t, ok)

	_, ok = identifier.Identify("://not a url")
	assert.False(t, ok)

	_, ok = identifier.Identify("")
	assert.False(t, ok)
}

func TestRegisterSite(t *testing.T) {
	identifier := NewIdentifier()
	identifier.RegisterSite("mysite.example.org", "mysite")

	ident, ok := identifier.Identify("https://mysite.example.org/announce?passkey=k")
	require.True(t, ok)
	assert.Equal(t, "mysite", ident.SiteID)

	// Subdomains of a registered custom domain resolve too.
	ident, ok = identifier.Identify("https://tracker.mysite.example.org/announce")
	require.True(t, ok)
	assert.Equal(t, "mysite", ident.SiteID)

	// A registration three labels deep does not capture sibling hosts.
	_, ok = identifier.Identify("https://other.example.org/announce")
	assert.False(t, ok)
}

func TestIdentifyFromTrackers(t *testing.T) {
	identifier := NewIdentifier()

	trackers := []string{
		"udp://public.example.net/announce",
		"https://hdhome.org/announce.php?passkey=a&id=42",
		"https://hdsky.me/announce.php?passkey=b",
	}

	ident, ok := identifier.IdentifyFromTrackers(trackers)
	require.True(t, ok, "first recognized tracker should win")
	assert.Equal(t, "hdhome", ident.SiteID)
	assert.Equal(t, "42", ident.TorrentID)

	_, ok = identifier.IdentifyFromTrackers([]string{"udp://public.example.net/announce"})
	assert.False(t, ok)

	_, ok = identifier.IdentifyFromTrackers(nil)
	assert.False(t, ok)
}

func TestExtractTorrentIDIgnoresNonNumericSegments(t *testing.T) {
	identifier := NewIdentifier()

	// Passkey-style hex path segments must not be mistaken for torrent ids.
	ident, ok := identifier.Identify("https://pterclub.com/announce/a1b2c3d4e5")
	require.True(t, ok)
	assert.Empty(t, ident.TorrentID)
}

func TestBuiltinSiteLookup(t *testing.T) {
	cfg, ok := BuiltinSite("ttg")
	require.True(t, ok)
	assert.Equal(t, "TTG", cfg.Name)
	assert.Equal(t, "/dl/{id}/{passkey}", cfg.DownloadPattern)
	assert.False(t, cfg.Enabled, "builtin entries ship disabled")

	_, ok = BuiltinSite("nope")
	assert.False(t, ok)
}
