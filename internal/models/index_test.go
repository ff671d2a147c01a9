// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graftseed/graft/internal/fingerprint"
)

func TestIndexStoreFingerprintUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewIndexStore(testDB(t))

	fp := fingerprint.ContentFingerprint{
		TotalSize:       10_000_001_000,
		FileCount:       2,
		LargestFileSize: 10_000_000_000,
		FilesHash:       "da39a3ee5e6b4b0d3255bfef95601890afd80709",
	}

	id1, err := store.UpsertFingerprint(ctx, fp)
	require.NoError(t, err, "Failed to upsert fingerprint")
	require.NotZero(t, id1)

	id2, err := store.UpsertFingerprint(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "identical fingerprints share one row")

	// The dedup key is the triple alone; a hashless fingerprint with the
	// same triple reuses the row and its stored hash.
	noHash := fp
	noHash.FilesHash = ""
	id3, err := store.UpsertFingerprint(ctx, noHash)
	require.NoError(t, err)
	assert.Equal(t, id1, id3)

	other := fp
	other.TotalSize++
	id4, err := store.UpsertFingerprint(ctx, other)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id4)
}

func TestIndexStoreEntries(t *testing.T) {
	ctx := context.Background()
	store := NewIndexStore(testDB(t))

	fp := fingerprint.ContentFingerprint{TotalSize: 5000, FileCount: 3, LargestFileSize: 4000, FilesHash: "abc123"}
	fpID, err := store.UpsertFingerprint(ctx, fp)
	require.NoError(t, err)

	_, err = store.InsertEntry(ctx, &IndexEntry{
		InfoHash:      "aaaa",
		SiteID:        "hdsky",
		TorrentID:     "12345",
		FingerprintID: fpID,
		Name:          "Big.Show.S01",
		Size:          5000,
		SavePath:      "/downloads",
		SourceClient:  "client-1",
	})
	require.NoError(t, err, "Failed to insert entry")

	// Same content on another site; optional columns empty.
	_, err = store.InsertEntry(ctx, &IndexEntry{
		InfoHash:      "bbbb",
		SiteID:        "ourbits",
		FingerprintID: fpID,
		Size:          5000,
	})
	require.NoError(t, err)

	has, err := store.HasEntry(ctx, "aaaa", "hdsky")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = store.HasEntry(ctx, "aaaa", "ourbits")
	require.NoError(t, err)
	assert.False(t, has, "pair check is per site")

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byHash := map[string]fingerprint.Entry{}
	for _, e := range entries {
		byHash[e.InfoHash] = e
	}

	first := byHash["aaaa"]
	assert.Equal(t, "hdsky", first.SiteID)
	assert.Equal(t, "12345", first.TorrentID)
	assert.Equal(t, "Big.Show.S01", first.Name)
	assert.Equal(t, "/downloads", first.SavePath)
	assert.Equal(t, fp, first.Fingerprint, "fingerprint fields survive the round trip")

	second := byHash["bbbb"]
	assert.Empty(t, second.TorrentID, "NULL torrent_id scans as empty")
	assert.Equal(t, fp, second.Fingerprint)
}

func TestIndexStoreUniquePair(t *testing.T) {
	ctx := context.Background()
	store := NewIndexStore(testDB(t))

	fpID, err := store.UpsertFingerprint(ctx, fingerprint.ContentFingerprint{TotalSize: 1, FileCount: 1, LargestFileSize: 1})
	require.NoError(t, err)

	entry := &IndexEntry{InfoHash: "cccc", SiteID: "hdsky", FingerprintID: fpID, Size: 1}
	_, err = store.InsertEntry(ctx, entry)
	require.NoError(t, err)

	_, err = store.InsertEntry(ctx, &IndexEntry{InfoHash: "cccc", SiteID: "hdsky", FingerprintID: fpID, Size: 1})
	assert.Error(t, err, "duplicate (info_hash, site_id) must be rejected")
}

func TestIndexStoreClear(t *testing.T) {
	ctx := context.Background()
	store := NewIndexStore(testDB(t))

	fpID, err := store.UpsertFingerprint(ctx, fingerprint.ContentFingerprint{TotalSize: 1, FileCount: 1, LargestFileSize: 1})
	require.NoError(t, err)

	for _, pair := range [][2]string{{"aaaa", "hdsky"}, {"bbbb", "hdsky"}, {"cccc", "ourbits"}} {
		_, err = store.InsertEntry(ctx, &IndexEntry{InfoHash: pair[0], SiteID: pair[1], FingerprintID: fpID, Size: 1})
		require.NoError(t, err)
	}

	require.NoError(t, store.ClearBySite(ctx, "hdsky"))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "only the named site's entries are cleared")

	require.NoError(t, store.Clear(ctx))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIndexStoreStats(t *testing.T) {
	ctx := context.Background()
	store := NewIndexStore(testDB(t))

	fpID, err := store.UpsertFingerprint(ctx, fingerprint.ContentFingerprint{TotalSize: 1, FileCount: 1, LargestFileSize: 1})
	require.NoError(t, err)

	for _, pair := range [][2]string{
		{"a1", "hdsky"}, {"a2", "hdsky"}, {"a3", "hdsky"},
		{"b1", "ourbits"},
	} {
		_, err = store.InsertEntry(ctx, &IndexEntry{InfoHash: pair[0], SiteID: pair[1], FingerprintID: fpID, Size: 1})
		require.NoError(t, err)
	}

	stats, err := store.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalEntries)
	require.Len(t, stats.Sites, 2)
	assert.Equal(t, SiteCount{SiteID: "hdsky", Count: 3}, stats.Sites[0], "sites ordered by count descending")
	assert.Equal(t, SiteCount{SiteID: "ourbits", Count: 1}, stats.Sites[1])
}
