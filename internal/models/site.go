// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrSiteNotFound   = errors.New("site not found")
	ErrNoUpdateFields = errors.New("no fields to update")
)

// Site is a configured tracker site.
type Site struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	BaseURL         string    `json:"base_url"`
	TemplateType    string    `json:"template_type"`
	DownloadPattern string    `json:"download_pattern,omitempty"`
	Passkey         string    `json:"-"`
	CookieEncrypted string    `json:"-"`
	Authkey         string    `json:"-"`
	Enabled         bool      `json:"enabled"`
	RateLimitRPM    int       `json:"rate_limit_rpm,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SiteUpsert carries the full set of values for creating or replacing a
// site. Empty secrets leave any stored secret in place.
type SiteUpsert struct {
	ID              string
	Name            string
	BaseURL         string
	TemplateType    string
	DownloadPattern string
	Passkey         string
	Cookie          string
	Authkey         string
	Enabled         bool
	RateLimitRPM    int
}

// SiteUpdate carries a partial update; nil fields are left untouched.
type SiteUpdate struct {
	Name            *string
	BaseURL         *string
	TemplateType    *string
	DownloadPattern *string
	Passkey         *string
	Cookie          *string
	Authkey         *string
	Enabled         *bool
	RateLimitRPM    *int
}

func (u SiteUpdate) empty() bool {
	return u.Name == nil && u.BaseURL == nil && u.TemplateType == nil &&
		u.DownloadPattern == nil && u.Passkey == nil && u.Cookie == nil &&
		u.Authkey == nil && u.Enabled == nil && u.RateLimitRPM == nil
}

type SiteStore struct {
	db *sql.DB
}

func NewSiteStore(db *sql.DB) *SiteStore {
	return &SiteStore{db: db}
}

const siteColumns = `id, name, base_url, template_type, download_pattern, passkey, cookie_encrypted, authkey, enabled, rate_limit_rpm, created_at, updated_at`

func scanSite(row interface{ Scan(...any) error }) (*Site, error) {
	site := &Site{}
	var pattern, passkey, cookie, authkey sql.NullString
	var rpm sql.NullInt64
	err := row.Scan(
		&site.ID,
		&site.Name,
		&site.BaseURL,
		&site.TemplateType,
		&pattern,
		&passkey,
		&cookie,
		&authkey,
		&site.Enabled,
		&rpm,
		&site.CreatedAt,
		&site.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	site.DownloadPattern = pattern.String
	site.Passkey = passkey.String
	site.CookieEncrypted = cookie.String
	site.Authkey = authkey.String
	site.RateLimitRPM = int(rpm.Int64)
	return site, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Upsert inserts a site or replaces its non-secret fields. Secrets only
// change when the new value is non-empty, so re-saving a site through the
// API never wipes a stored passkey or cookie.
func (s *SiteStore) Upsert(ctx context.Context, p SiteUpsert) (*Site, error) {
	query := `
		INSERT INTO sites (id, name, base_url, template_type, download_pattern, passkey, cookie_encrypted, authkey, enabled, rate_limit_rpm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			base_url = excluded.base_url,
			template_type = excluded.template_type,
			download_pattern = COALESCE(excluded.download_pattern, sites.download_pattern),
			passkey = COALESCE(excluded.passkey, sites.passkey),
			cookie_encrypted = COALESCE(excluded.cookie_encrypted, sites.cookie_encrypted),
			authkey = COALESCE(excluded.authkey, sites.authkey),
			enabled = excluded.enabled,
			rate_limit_rpm = excluded.rate_limit_rpm,
			updated_at = CURRENT_TIMESTAMP
	`

	var rpm any
	if p.RateLimitRPM > 0 {
		rpm = p.RateLimitRPM
	}

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.BaseURL, p.TemplateType,
		nullIfEmpty(p.DownloadPattern),
		nullIfEmpty(p.Passkey),
		nullIfEmpty(obfuscate(p.Cookie)),
		nullIfEmpty(p.Authkey),
		p.Enabled, rpm)
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, p.ID)
}

func (s *SiteStore) Get(ctx context.Context, id string) (*Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE id = ?`

	site, err := scanSite(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, err
	}
	return site, nil
}

// GetEnabled looks up a site that is switched on. Disabled and unknown
// sites both come back as ErrSiteNotFound.
func (s *SiteStore) GetEnabled(ctx context.Context, id string) (*Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE id = ? AND enabled = 1`

	site, err := scanSite(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, err
	}
	return site, nil
}

func (s *SiteStore) List(ctx context.Context) ([]*Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *SiteStore) Update(ctx context.Context, id string, u SiteUpdate) (*Site, error) {
	if u.empty() {
		return nil, ErrNoUpdateFields
	}

	query := `UPDATE sites SET updated_at = CURRENT_TIMESTAMP`
	var args []any

	if u.Name != nil {
		query += ", name = ?"
		args = append(args, *u.Name)
	}
	if u.BaseURL != nil {
		query += ", base_url = ?"
		args = append(args, *u.BaseURL)
	}
	if u.TemplateType != nil {
		query += ", template_type = ?"
		args = append(args, *u.TemplateType)
	}
	if u.DownloadPattern != nil {
		query += ", download_pattern = ?"
		args = append(args, nullIfEmpty(*u.DownloadPattern))
	}
	if u.Passkey != nil {
		query += ", passkey = ?"
		args = append(args, nullIfEmpty(*u.Passkey))
	}
	if u.Cookie != nil {
		query += ", cookie_encrypted = ?"
		args = append(args, nullIfEmpty(obfuscate(*u.Cookie)))
	}
	if u.Authkey != nil {
		query += ", authkey = ?"
		args = append(args, nullIfEmpty(*u.Authkey))
	}
	if u.Enabled != nil {
		query += ", enabled = ?"
		args = append(args, *u.Enabled)
	}
	if u.RateLimitRPM != nil {
		query += ", rate_limit_rpm = ?"
		args = append(args, *u.RateLimitRPM)
	}

	query += " WHERE id = ?"
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrSiteNotFound
	}

	return s.Get(ctx, id)
}

// Delete removes a site and its tracker domain registrations.
func (s *SiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tracker_domains WHERE site_id = ?`, id); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSiteNotFound
	}
	return nil
}

// RegisterTrackerDomains records announce domains for a site. Already
// registered domains are left alone.
func (s *SiteStore) RegisterTrackerDomains(ctx context.Context, siteID string, domains []string) error {
	for _, domain := range domains {
		if domain == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO tracker_domains (domain, site_id) VALUES (?, ?)`,
			domain, siteID); err != nil {
			return err
		}
	}
	return nil
}

// TrackerDomains returns every registered domain keyed to its site.
func (s *SiteStore) TrackerDomains(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain, site_id FROM tracker_domains`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	domains := make(map[string]string)
	for rows.Next() {
		var domain, siteID string
		if err := rows.Scan(&domain, &siteID); err != nil {
			return nil, err
		}
		domains[domain] = siteID
	}
	return domains, rows.Err()
}

func (s *SiteStore) CountEnabled(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites WHERE enabled = 1`).Scan(&count)
	return count, err
}

// DecryptedCookie returns the stored cookie in the clear.
func (s *SiteStore) DecryptedCookie(site *Site) (string, error) {
	return deobfuscate(site.CookieEncrypted)
}
