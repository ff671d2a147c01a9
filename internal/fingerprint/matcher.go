// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fingerprint

import "sort"

// Entry is an indexed torrent known to the matcher.
type Entry struct {
	Fingerprint ContentFingerprint
	InfoHash    string
	SiteID      string
	TorrentID   string
	Name        string
	SavePath    string
}

// Match pairs an entry with the result of comparing it against a query
// fingerprint.
type Match struct {
	Entry  Entry
	Result MatchResult
}

// Matcher is an in-memory index of entries bucketed by total size. Total
// size is a near-unique 64-bit discriminator in practice, so a lookup scans
// a single small bucket. The matcher is built once from the persistent
// index and read-only afterwards.
type Matcher struct {
	bySize map[uint64][]Entry
}

func NewMatcher() *Matcher {
	return &Matcher{bySize: make(map[uint64][]Entry)}
}

// Add appends an entry to its size bucket.
func (m *Matcher) Add(e Entry) {
	m.bySize[e.Fingerprint.TotalSize] = append(m.bySize[e.Fingerprint.TotalSize], e)
}

// FindMatches returns the entries matching fp at medium confidence or
// better, highest confidence first. Entries with equal confidence keep
// their insertion order.
func (m *Matcher) FindMatches(fp ContentFingerprint) []Match {
	var matches []Match
	for _, candidate := range m.bySize[fp.TotalSize] {
		if result := fp.Matches(candidate.Fingerprint); result.IsMatch() {
			matches = append(matches, Match{Entry: candidate, Result: result})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Result > matches[j].Result
	})

	return matches
}

// FindCrossSiteMatches behaves like FindMatches but drops entries belonging
// to excludeSite, so a torrent never matches its own tracker.
func (m *Matcher) FindCrossSiteMatches(fp ContentFingerprint, excludeSite string) []Match {
	matches := m.FindMatches(fp)
	filtered := matches[:0]
	for _, match := range matches {
		if match.Entry.SiteID != excludeSite {
			filtered = append(filtered, match)
		}
	}
	return filtered
}

// Len returns the total number of indexed entries.
func (m *Matcher) Len() int {
	n := 0
	for _, entries := range m.bySize {
		n += len(entries)
	}
	return n
}
