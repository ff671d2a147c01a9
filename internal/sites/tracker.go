// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sites

import (
	"net/url"
	"strings"
)

// Identification is the result of recognizing a tracker URL: which site it
// belongs to and, when the URL carries one, the site-local torrent id.
type Identification struct {
	SiteID    string
	TorrentID string
}

// Identifier maps tracker hostnames to site ids. The builtin table covers
// well-known trackers; RegisterSite adds custom domains on top.
type Identifier struct {
	domains map[string]string
}

func NewIdentifier() *Identifier {
	id := &Identifier{domains: make(map[string]string, len(builtinTrackerDomains))}
	for domain, siteID := range builtinTrackerDomains {
		id.domains[domain] = siteID
	}
	return id
}

// builtinTrackerDomains maps announce hostnames to site ids. Sites without a
// builtin template config still appear here so their torrents are attributed
// to a stable site id during indexing.
var builtinTrackerDomains = map[string]string{
	"m-team.cc":        "mteam",
	"kp.m-team.cc":     "mteam",
	"pt.m-team.cc":     "mteam",
	"hdsky.me":         "hdsky",
	"ourbits.club":     "ourbits",
	"pterclub.com":     "pterclub",
	"hdhome.org":       "hdhome",
	"audiences.me":     "audiences",
	"chdbits.co":       "chdbits",
	"totheglory.im":    "ttg",
	"t.totheglory.im":  "ttg",
	"springsunday.net": "ssd",
	"hdarea.club":      "hdarea",
	"hdatmos.club":     "hdatmos",
	"hdfans.org":       "hdfans",
	"hdtime.org":       "hdtime",
	"1ptba.com":        "1ptba",
	"hdzone.me":        "hdzone",
	"pt.hdupt.com":     "hdupt",
	"pt.btschool.club": "btschool",
	"blutopia.cc":      "blutopia",
	"aither.cc":        "aither",
	"reelflix.xyz":     "reelflix",
	"redacted.ch":      "redacted",
	"flacsfor.me":      "redacted",
	"orpheus.network":  "orpheus",
}

// RegisterSite adds a custom domain mapping, overriding any builtin entry
// for the same domain.
func (i *Identifier) RegisterSite(domain, siteID string) {
	i.domains[domain] = siteID
}

// Identify recognizes a single tracker URL. The second return value is false
// when the URL does not parse or its host matches no known site.
func (i *Identifier) Identify(trackerURL string) (Identification, bool) {
	u, err := url.Parse(trackerURL)
	if err != nil {
		return Identification{}, false
	}
	host := u.Hostname()
	if host == "" {
		return Identification{}, false
	}

	siteID, ok := i.findSiteByHost(host)
	if !ok {
		return Identification{}, false
	}

	return Identification{
		SiteID:    siteID,
		TorrentID: extractTorrentID(u),
	}, true
}

// IdentifyFromTrackers returns the first identification across a torrent's
// tracker list, in list order.
func (i *Identifier) IdentifyFromTrackers(trackers []string) (Identification, bool) {
	for _, tracker := range trackers {
		if ident, ok := i.Identify(tracker); ok {
			return ident, true
		}
	}
	return Identification{}, false
}

func (i *Identifier) findSiteByHost(host string) (string, bool) {
	if siteID, ok := i.domains[host]; ok {
		return siteID, true
	}

	// Fall back to the registrable suffix so announce subdomains like
	// tracker.example.com still match an example.com entry.
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		base := strings.Join(parts[len(parts)-2:], ".")
		if siteID, ok := i.domains[base]; ok {
			return siteID, true
		}
	}
	if len(parts) >= 3 {
		withSub := strings.Join(parts[len(parts)-3:], ".")
		if siteID, ok := i.domains[withSub]; ok {
			return siteID, true
		}
	}

	return "", false
}

// extractTorrentID pulls a site-local torrent id out of a tracker URL, from
// the common query keys first, then from a trailing numeric path segment
// (e.g. /announce/12345). Returns "" when nothing matches.
func extractTorrentID(u *url.URL) string {
	query := u.Query()
	for _, key := range []string{"torrent_id", "id", "tid"} {
		if v := query.Get(key); v != "" {
			return v
		}
	}

	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if s := segments[i]; s != "" && isDigits(s) {
			return s
		}
	}

	return ""
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
