// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sites

// BuiltinSites returns the catalog of known site configurations. All entries
// ship disabled and without secrets; configuring a site copies an entry and
// fills in the user's passkey or cookie.
func BuiltinSites() []Config {
	return []Config{
		{
			ID:              "mteam",
			Name:            "M-Team",
			BaseURL:         "https://kp.m-team.cc",
			TemplateType:    TemplateNexusPHP,
			TrackerDomains:  []string{"m-team.cc", "kp.m-team.cc", "pt.m-team.cc"},
			DownloadPattern: "/download.php?id={id}&passkey={passkey}",
			RateLimitRPM:    10,
		},
		{
			ID:              "hdsky",
			Name:            "HDSky",
			BaseURL:         "https://hdsky.me",
			TemplateType:    TemplateNexusPHP,
			TrackerDomains:  []string{"hdsky.me"},
			DownloadPattern: "/download.php?id={id}&passkey={passkey}",
			RateLimitRPM:    10,
		},
		{
			ID:              "ourbits",
			Name:            "OurBits",
			BaseURL:         "https://ourbits.club",
			TemplateType:    TemplateNexusPHP,
			TrackerDomains:  []string{"ourbits.club"},
			DownloadPattern: "/download.php?id={id}&passkey={passkey}",
			RateLimitRPM:    10,
		},
		{
			ID:              "pterclub",
			Name:            "PTer",
			BaseURL:         "https://pterclub.com",
			TemplateType:    TemplateNexusPHP,
			TrackerDomains:  []string{"pterclub.com"},
			DownloadPattern: "/download.php?id={id}&passkey={passkey}",
			RateLimitRPM:    10,
		},
		{
			ID:              "hdhome",
			Name:            "HDHome",
			BaseURL:         "https://hdhome.org",
			TemplateType:    TemplateNexusPHP,
			TrackerDomains:  []string{"hdhome.org"},
			DownloadPattern: "/download.php?id={id}&passkey={passkey}",
			RateLimitRPM:    10,
		},
		{
			ID:              "audiences",
			Name:            "Audiences",
			BaseURL:         "https://audiences.me",
			TemplateType:    TemplateNexusPHP,
			TrackerDomains:  []string{"audiences.me"},
			DownloadPattern: "/download.php?id={id}&passkey={passkey}",
			RateLimitRPM:    10,
		},
		{
			ID:              "chdbits",
			Name:            "CHDBits",
			BaseURL:         "https://chdbits.co",
			TemplateType:    TemplateNexusPHP,
			TrackerDomains:  []string{"chdbits.co"},
			DownloadPattern: "/download.php?id={id}&passkey={passkey}",
			RateLimitRPM:    10,
		},
		{
			ID:              "ttg",
			Name:            "TTG",
			BaseURL:         "https://totheglory.im",
			TemplateType:    TemplateNexusPHP,
			TrackerDomains:  []string{"totheglory.im", "t.totheglory.im"},
			DownloadPattern: "/dl/{id}/{passkey}",
			RateLimitRPM:    10,
		},
		{
			ID:              "blutopia",
			Name:            "Blutopia",
			BaseURL:         "https://blutopia.cc",
			TemplateType:    TemplateUnit3D,
			TrackerDomains:  []string{"blutopia.cc"},
			DownloadPattern: "/torrent/download/{id}.{passkey}",
			RateLimitRPM:    10,
		},
		{
			ID:              "aither",
			Name:            "Aither",
			BaseURL:         "https://aither.cc",
			TemplateType:    TemplateUnit3D,
			TrackerDomains:  []string{"aither.cc"},
			DownloadPattern: "/torrent/download/{id}.{passkey}",
			RateLimitRPM:    10,
		},
		{
			ID:              "redacted",
			Name:            "Redacted",
			BaseURL:         "https://redacted.ch",
			TemplateType:    TemplateGazelle,
			TrackerDomains:  []string{"redacted.ch", "flacsfor.me"},
			DownloadPattern: "/torrents.php?action=download&id={id}&authkey={authkey}&torrent_pass={passkey}",
			RateLimitRPM:    5,
		},
		{
			ID:              "orpheus",
			Name:            "Orpheus",
			BaseURL:         "https://orpheus.network",
			TemplateType:    TemplateGazelle,
			TrackerDomains:  []string{"orpheus.network"},
			DownloadPattern: "/torrents.php?action=download&id={id}&authkey={authkey}&torrent_pass={passkey}",
			RateLimitRPM:    5,
		},
	}
}

// BuiltinSite looks up one catalog entry by site id.
func BuiltinSite(id string) (Config, bool) {
	for _, cfg := range BuiltinSites() {
		if cfg.ID == id {
			return cfg, true
		}
	}
	return Config{}, false
}
