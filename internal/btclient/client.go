// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package btclient talks to download clients (qBittorrent, Transmission)
// through one interface so the index and reseed pipelines never care which
// backend a torrent lives in.
package btclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrConnectionFailed     = errors.New("connection failed")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRequestFailed        = errors.New("request failed")
	ErrInvalidResponse      = errors.New("invalid response")
	ErrTorrentNotFound      = errors.New("torrent not found")
	ErrNotSupported         = errors.New("operation not supported")
)

// ClientType names a supported download client backend.
type ClientType string

const (
	ClientQBittorrent  ClientType = "qbittorrent"
	ClientTransmission ClientType = "transmission"
)

// ParseClientType accepts the canonical names plus the "qb"/"tr" shorthands.
func ParseClientType(s string) (ClientType, error) {
	switch strings.ToLower(s) {
	case "qbittorrent", "qb":
		return ClientQBittorrent, nil
	case "transmission", "tr":
		return ClientTransmission, nil
	}
	return "", fmt.Errorf("unknown client type %q", s)
}

// TorrentState is the normalized lifecycle state across backends.
type TorrentState string

const (
	StateDownloading TorrentState = "downloading"
	StateSeeding     TorrentState = "seeding"
	StatePaused      TorrentState = "paused"
	StateChecking    TorrentState = "checking"
	StateError       TorrentState = "error"
	StateQueued      TorrentState = "queued"
	StateStalled     TorrentState = "stalled"
	StateUnknown     TorrentState = "unknown"
)

// TorrentInfo is the normalized view of one torrent. Hash is always
// lowercase hex. Files and Trackers may be empty on listings; fetch them
// with GetTorrentFiles / GetTorrentTrackers when needed.
type TorrentInfo struct {
	Hash     string        `json:"hash"`
	Name     string        `json:"name"`
	Size     uint64        `json:"size"`
	Progress float64       `json:"progress"`
	State    TorrentState  `json:"state"`
	SavePath string        `json:"save_path"`
	Category string        `json:"category,omitempty"`
	Tags     []string      `json:"tags"`
	Tracker  string        `json:"tracker,omitempty"`
	Trackers []string      `json:"trackers"`
	AddedOn  *time.Time    `json:"added_on,omitempty"`
	Files    []TorrentFile `json:"files"`
}

// TorrentFile is one file inside a torrent.
type TorrentFile struct {
	Name     string  `json:"name"`
	Size     uint64  `json:"size"`
	Progress float64 `json:"progress"`
}

// AddTorrentOptions carries add-time settings. Backends silently ignore
// options they do not support (Transmission has no categories).
type AddTorrentOptions struct {
	SavePath     string
	Category     string
	Tags         []string
	Paused       bool
	SkipChecking bool
}

// Config is the connection config for one download client.
type Config struct {
	ID       string
	Name     string
	Type     ClientType
	Host     string
	Port     int
	Username string
	Password string
	UseHTTPS bool
}

// BaseURL builds the scheme://host:port prefix for API calls.
func (c Config) BaseURL() string {
	scheme := "http"
	if c.UseHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// Client is the uniform download-client surface. Implementations normalize
// info-hashes to lowercase hex on every return path.
type Client interface {
	Type() ClientType
	ClientID() string

	TestConnection(ctx context.Context) (bool, error)

	GetTorrents(ctx context.Context) ([]TorrentInfo, error)
	// GetTorrent returns nil without error when the hash is unknown.
	GetTorrent(ctx context.Context, hash string) (*TorrentInfo, error)
	GetTorrentFiles(ctx context.Context, hash string) ([]TorrentFile, error)
	GetTorrentTrackers(ctx context.Context, hash string) ([]string, error)

	// AddTorrent returns the hash of the added torrent when the backend
	// reports it, "" otherwise.
	AddTorrent(ctx context.Context, torrentBytes []byte, opts AddTorrentOptions) (string, error)
	RemoveTorrent(ctx context.Context, hash string, deleteFiles bool) error
	PauseTorrent(ctx context.Context, hash string) error
	ResumeTorrent(ctx context.Context, hash string) error
	RecheckTorrent(ctx context.Context, hash string) error
}

// New builds the adapter for a client config.
func New(cfg Config) Client {
	switch cfg.Type {
	case ClientTransmission:
		return NewTransmission(cfg)
	default:
		return NewQBittorrent(cfg)
	}
}
