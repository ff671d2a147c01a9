// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"time"

	"github.com/graftseed/graft/internal/fingerprint"
)

// IndexEntry is one indexed torrent on one site.
type IndexEntry struct {
	ID            int64     `json:"id"`
	InfoHash      string    `json:"info_hash"`
	SiteID        string    `json:"site_id"`
	TorrentID     string    `json:"torrent_id,omitempty"`
	FingerprintID int64     `json:"-"`
	Name          string    `json:"name,omitempty"`
	Size          uint64    `json:"size"`
	SavePath      string    `json:"save_path,omitempty"`
	SourceClient  string    `json:"source_client,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type SiteCount struct {
	SiteID string `json:"site_id"`
	Count  int    `json:"count"`
}

type IndexStats struct {
	TotalEntries int         `json:"total_entries"`
	Sites        []SiteCount `json:"sites"`
}

type IndexStore struct {
	db *sql.DB
}

func NewIndexStore(db *sql.DB) *IndexStore {
	return &IndexStore{db: db}
}

// UpsertFingerprint returns the id of the fingerprint row matching fp,
// inserting it first when the triple is new. The dedup key is the triple
// alone; files_hash is stored on first insert and never rewritten.
func (s *IndexStore) UpsertFingerprint(ctx context.Context, fp fingerprint.ContentFingerprint) (int64, error) {
	selectQuery := `
		SELECT id FROM content_fingerprints
		WHERE total_size = ? AND file_count = ? AND largest_file_size = ?
		LIMIT 1
	`

	var id int64
	err := s.db.QueryRowContext(ctx, selectQuery,
		fp.TotalSize, fp.FileCount, fp.LargestFileSize).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	insertQuery := `
		INSERT INTO content_fingerprints (total_size, file_count, largest_file_size, files_hash)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, insertQuery,
		fp.TotalSize, fp.FileCount, fp.LargestFileSize, nullIfEmpty(fp.FilesHash)).Scan(&id)
	return id, err
}

// HasEntry reports whether the (info_hash, site_id) pair is already indexed.
func (s *IndexStore) HasEntry(ctx context.Context, infoHash, siteID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM torrent_index WHERE info_hash = ? AND site_id = ?`,
		infoHash, siteID).Scan(&count)
	return count > 0, err
}

func (s *IndexStore) InsertEntry(ctx context.Context, e *IndexEntry) (int64, error) {
	query := `
		INSERT INTO torrent_index (info_hash, site_id, torrent_id, fingerprint_id, name, size, save_path, source_client)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		e.InfoHash, e.SiteID, nullIfEmpty(e.TorrentID), e.FingerprintID,
		nullIfEmpty(e.Name), e.Size, nullIfEmpty(e.SavePath), nullIfEmpty(e.SourceClient)).Scan(&id)
	if err != nil {
		return 0, err
	}
	e.ID = id
	return id, nil
}

// Entries loads every indexed torrent joined to its fingerprint, in the
// shape the matcher consumes.
func (s *IndexStore) Entries(ctx context.Context) ([]fingerprint.Entry, error) {
	query := `
		SELECT t.info_hash, t.site_id, t.torrent_id, t.name, t.save_path,
		       f.total_size, f.file_count, f.largest_file_size, f.files_hash
		FROM torrent_index t
		JOIN content_fingerprints f ON f.id = t.fingerprint_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []fingerprint.Entry
	for rows.Next() {
		var e fingerprint.Entry
		var torrentID, name, savePath, filesHash sql.NullString
		err := rows.Scan(
			&e.InfoHash, &e.SiteID, &torrentID, &name, &savePath,
			&e.Fingerprint.TotalSize, &e.Fingerprint.FileCount,
			&e.Fingerprint.LargestFileSize, &filesHash,
		)
		if err != nil {
			return nil, err
		}
		e.TorrentID = torrentID.String
		e.Name = name.String
		e.SavePath = savePath.String
		e.Fingerprint.FilesHash = filesHash.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *IndexStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM torrent_index`).Scan(&count)
	return count, err
}

// Clear drops the whole index, fingerprints included.
func (s *IndexStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM torrent_index`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM content_fingerprints`)
	return err
}

// ClearBySite drops one site's entries. Fingerprints are left behind; a
// later import reuses them.
func (s *IndexStore) ClearBySite(ctx context.Context, siteID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM torrent_index WHERE site_id = ?`, siteID)
	return err
}

func (s *IndexStore) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{Sites: []SiteCount{}}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM torrent_index`).Scan(&stats.TotalEntries); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT site_id, COUNT(*) AS count FROM torrent_index GROUP BY site_id ORDER BY count DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sc SiteCount
		if err := rows.Scan(&sc.SiteID, &sc.Count); err != nil {
			return nil, err
		}
		stats.Sites = append(stats.Sites, sc)
	}
	return stats, rows.Err()
}
