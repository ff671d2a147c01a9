// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"time"
)

// Reseed attempt outcomes as stored in history rows.
const (
	ReseedStatusSuccess = "success"
	ReseedStatusFailed  = "failed"
	ReseedStatusSkipped = "skipped"
)

// ReseedRecord is one row of reseed history: a single attempt to add one
// matched torrent to a target site.
type ReseedRecord struct {
	ID         int64     `json:"id"`
	TaskID     string    `json:"-"` // groups one run's rows; stays out of API responses
	InfoHash   string    `json:"info_hash"`
	SourceSite string    `json:"source_site,omitempty"`
	TargetSite string    `json:"target_site"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Record(ctx context.Context, r *ReseedRecord) error {
	query := `
		INSERT INTO reseed_history (task_id, info_hash, source_site, target_site, status, message)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, created_at
	`

	return s.db.QueryRowContext(ctx, query,
		nullIfEmpty(r.TaskID), r.InfoHash, nullIfEmpty(r.SourceSite),
		r.TargetSite, r.Status, nullIfEmpty(r.Message)).Scan(&r.ID, &r.CreatedAt)
}

// List returns history rows newest first. An empty status returns all
// statuses.
func (s *HistoryStore) List(ctx context.Context, limit, offset int, status string) ([]*ReseedRecord, error) {
	query := `SELECT id, task_id, info_hash, source_site, target_site, status, message, created_at FROM reseed_history`
	var args []any

	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}

	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*ReseedRecord
	for rows.Next() {
		r := &ReseedRecord{}
		var taskID, sourceSite, message sql.NullString
		err := rows.Scan(&r.ID, &taskID, &r.InfoHash, &sourceSite,
			&r.TargetSite, &r.Status, &message, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.TaskID = taskID.String
		r.SourceSite = sourceSite.String
		r.Message = message.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// StatusCounts returns the all-time number of history rows per status.
func (s *HistoryStore) StatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM reseed_history GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// TodayCounts returns today's success and failure totals for the stats
// endpoint.
func (s *HistoryStore) TodayCounts(ctx context.Context) (success, failed int, err error) {
	query := `
		SELECT
			COUNT(CASE WHEN status = 'success' THEN 1 END),
			COUNT(CASE WHEN status = 'failed' THEN 1 END)
		FROM reseed_history
		WHERE created_at >= date('now')
	`
	err = s.db.QueryRowContext(ctx, query).Scan(&success, &failed)
	return success, failed, err
}
