// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationIdempotency(t *testing.T) {
	ctx := context.Background()

	tmpDir, err := os.MkdirTemp("", "graft-test-idempotent-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")

	// Initialize database first time
	db1, err := New(dbPath)
	require.NoError(t, err, "Failed to initialize database first time")

	var count1 int
	err = db1.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations").Scan(&count1)
	require.NoError(t, err, "Failed to count migrations")
	db1.Close()

	// Initialize database second time (should be idempotent)
	db2, err := New(dbPath)
	require.NoError(t, err, "Failed to initialize database second time")
	defer db2.Close()

	var count2 int
	err = db2.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations").Scan(&count2)
	require.NoError(t, err, "Failed to count migrations")

	assert.Equal(t, count1, count2, "Migration count should be the same after re-initialization")
	assert.Equal(t, 1, count2, "Should have exactly 1 migration applied")
}

func TestSchemaTables(t *testing.T) {
	ctx := context.Background()

	tmpDir, err := os.MkdirTemp("", "graft-test-schema-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	db, err := New(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{
		"clients", "sites", "tracker_domains",
		"content_fingerprints", "torrent_index", "reseed_history",
	} {
		var name string
		err := db.conn.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}

	// The unique pair constraint is what keeps re-imports idempotent.
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO content_fingerprints (total_size, file_count, largest_file_size) VALUES (1000, 1, 1000)
	`)
	require.NoError(t, err)

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO torrent_index (info_hash, site_id, fingerprint_id, size) VALUES ('abc', 'hdsky', 1, 1000)
	`)
	require.NoError(t, err)

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO torrent_index (info_hash, site_id, fingerprint_id, size) VALUES ('abc', 'hdsky', 1, 1000)
	`)
	assert.Error(t, err, "duplicate (info_hash, site_id) must be rejected")
}
