// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package btclient

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// normalizeForSearch normalizes text for searching by replacing common separators
func normalizeForSearch(text string) string {
	// Replace common torrent separators with spaces
	replacers := []string{".", "_", "-", "[", "]", "(", ")", "{", "}"}
	normalized := strings.ToLower(text)
	for _, r := range replacers {
		normalized = strings.ReplaceAll(normalized, r, " ")
	}
	// Collapse multiple spaces
	return strings.Join(strings.Fields(normalized), " ")
}

// FilterTorrents filters torrents by search string with smart matching.
// Release names bury the interesting words under dots and brackets, so an
// exact substring hit ranks first, then a separator-normalized hit, then
// all-words, then a fuzzy match on the name.
func FilterTorrents(torrents []TorrentInfo, search string) []TorrentInfo {
	if search == "" {
		return torrents
	}

	type torrentMatch struct {
		torrent TorrentInfo
		score   int
	}

	var matches []torrentMatch
	searchLower := strings.ToLower(search)
	searchNormalized := normalizeForSearch(search)
	searchWords := strings.Fields(searchNormalized)

	for _, torrent := range torrents {
		tags := strings.Join(torrent.Tags, " ")

		// Method 1: Exact substring match (highest priority)
		nameLower := strings.ToLower(torrent.Name)
		categoryLower := strings.ToLower(torrent.Category)
		tagsLower := strings.ToLower(tags)

		if strings.Contains(nameLower, searchLower) ||
			strings.Contains(categoryLower, searchLower) ||
			strings.Contains(tagsLower, searchLower) {
			matches = append(matches, torrentMatch{torrent: torrent, score: 0})
			continue
		}

		// Method 2: Normalized match (handles dots, underscores, etc)
		nameNormalized := normalizeForSearch(torrent.Name)
		categoryNormalized := normalizeForSearch(torrent.Category)
		tagsNormalized := normalizeForSearch(tags)

		if strings.Contains(nameNormalized, searchNormalized) ||
			strings.Contains(categoryNormalized, searchNormalized) ||
			strings.Contains(tagsNormalized, searchNormalized) {
			matches = append(matches, torrentMatch{torrent: torrent, score: 1})
			continue
		}

		// Method 3: All words present (for multi-word searches)
		if len(searchWords) > 1 {
			allFields := nameNormalized + " " + categoryNormalized + " " + tagsNormalized
			allWordsFound := true
			for _, word := range searchWords {
				if !strings.Contains(allFields, word) {
					allWordsFound = false
					break
				}
			}
			if allWordsFound {
				matches = append(matches, torrentMatch{torrent: torrent, score: 2})
				continue
			}
		}

		// Method 4: Fuzzy match only on the normalized name, not the full
		// text, so random letter runs across category and tags never hit
		if fuzzy.MatchNormalizedFold(searchNormalized, nameNormalized) {
			score := fuzzy.RankMatchNormalizedFold(searchNormalized, nameNormalized)
			if score < 10 {
				matches = append(matches, torrentMatch{torrent: torrent, score: 3 + score})
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score < matches[j].score
	})

	filtered := make([]TorrentInfo, len(matches))
	for i, match := range matches {
		filtered[i] = match.torrent
	}

	return filtered
}
