// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrClientNotFound = errors.New("client not found")

// Client is a configured download client connection.
type Client struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	ClientType        string    `json:"client_type"`
	Host              string    `json:"host"`
	Port              int       `json:"port"`
	Username          string    `json:"username,omitempty"`
	PasswordEncrypted string    `json:"-"`
	UseHTTPS          bool      `json:"use_https"`
	Enabled           bool      `json:"enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type ClientStore struct {
	db *sql.DB
}

func NewClientStore(db *sql.DB) *ClientStore {
	return &ClientStore{db: db}
}

// obfuscate encodes a secret for storage. Base64 keeps credentials out of
// casual view in the database file; it is not encryption.
func obfuscate(plain string) string {
	if plain == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(plain))
}

func deobfuscate(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("malformed stored secret: %w", err)
	}
	return string(decoded), nil
}

const clientColumns = `id, name, client_type, host, port, username, password_encrypted, use_https, enabled, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (*Client, error) {
	client := &Client{}
	var username, password sql.NullString
	err := row.Scan(
		&client.ID,
		&client.Name,
		&client.ClientType,
		&client.Host,
		&client.Port,
		&username,
		&password,
		&client.UseHTTPS,
		&client.Enabled,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	client.Username = username.String
	client.PasswordEncrypted = password.String
	return client, nil
}

func (s *ClientStore) Create(ctx context.Context, name, clientType, host string, port int, username, password string, useHTTPS bool) (*Client, error) {
	query := `
		INSERT INTO clients (id, name, client_type, host, port, username, password_encrypted, use_https, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
		RETURNING ` + clientColumns

	id := uuid.New().String()
	return scanClient(s.db.QueryRowContext(ctx, query,
		id, name, clientType, host, port, username, obfuscate(password), useHTTPS))
}

func (s *ClientStore) Get(ctx context.Context, id string) (*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = ?`

	client, err := scanClient(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (s *ClientStore) List(ctx context.Context) ([]*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

// Update replaces every field of a client. An empty password keeps the
// stored one.
func (s *ClientStore) Update(ctx context.Context, id, name, clientType, host string, port int, username, password string, useHTTPS, enabled bool) (*Client, error) {
	query := `UPDATE clients SET name = ?, client_type = ?, host = ?, port = ?, username = ?, use_https = ?, enabled = ?, updated_at = CURRENT_TIMESTAMP`
	args := []any{name, clientType, host, port, username, useHTTPS, enabled}

	if password != "" {
		query += ", password_encrypted = ?"
		args = append(args, obfuscate(password))
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
		return nil, ErrClientNotFound
	}

	return s.Get(ctx, id)
}

func (s *ClientStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrClientNotFound
	}
	return nil
}

func (s *ClientStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&count)
	return count, err
}

// DecryptedPassword returns the stored password in the clear.
func (s *ClientStore) DecryptedPassword(client *Client) (string, error) {
	return deobfuscate(client.PasswordEncrypted)
}
