// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package btclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog/log"

	"github.com/graftseed/graft/internal/models"
)

var ErrPoolClosed = errors.New("client pool is closed")

const (
	healthCheckInterval    = 30 * time.Second
	healthCheckTimeout     = 10 * time.Second
	minHealthCheckInterval = 20 * time.Second

	// Normal failure backoff durations
	initialBackoff = 30 * time.Second
	maxBackoff     = 10 * time.Minute

	// Ban-related backoff durations
	banInitialBackoff = 5 * time.Minute
	banMaxBackoff     = 1 * time.Hour

	fileCacheTTL = 5 * time.Minute
)

// failureInfo tracks failure state and backoff for a client
type failureInfo struct {
	nextRetry time.Time
	attempts  int
}

// pooledClient wraps an adapter with connection health bookkeeping.
type pooledClient struct {
	Client
	mu              sync.RWMutex
	healthy         bool
	lastHealthCheck time.Time
}

func (pc *pooledClient) IsHealthy() bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.healthy
}

func (pc *pooledClient) LastHealthCheck() time.Time {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.lastHealthCheck
}

func (pc *pooledClient) HealthCheck(ctx context.Context) error {
	_, err := pc.TestConnection(ctx)

	pc.mu.Lock()
	pc.healthy = err == nil
	pc.lastHealthCheck = time.Now()
	pc.mu.Unlock()

	return err
}

// ClientPool manages connections to the configured download clients. Each
// client is connected lazily, health-checked in the background, and backed
// off exponentially after repeated failures.
type ClientPool struct {
	clients      map[string]*pooledClient
	clientStore  *models.ClientStore
	cache        *ristretto.Cache
	mu           sync.RWMutex
	closed       bool
	healthTicker *time.Ticker
	stopHealth   chan struct{}
	failures     map[string]*failureInfo
}

// NewClientPool creates a new client pool
func NewClientPool(clientStore *models.ClientStore) (*ClientPool, error) {
	// Shared cache for per-torrent file listings; import and preview both
	// walk them, so repeat runs skip the N+1 fetches.
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     1 << 28, // 256MB
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	cp := &ClientPool{
		clients:      make(map[string]*pooledClient),
		clientStore:  clientStore,
		cache:        cache,
		healthTicker: time.NewTicker(healthCheckInterval),
		stopHealth:   make(chan struct{}),
		failures:     make(map[string]*failureInfo),
	}

	go cp.healthCheckLoop()

	return cp, nil
}

// GetClient returns a connected client for the given client ID
func (cp *ClientPool) GetClient(ctx context.Context, clientID string) (Client, error) {
	cp.mu.RLock()
	if cp.closed {
		cp.mu.RUnlock()
		return nil, ErrPoolClosed
	}

	client, exists := cp.clients[clientID]
	cp.mu.RUnlock()

	if exists && client.IsHealthy() {
		return client, nil
	}

	return cp.createClient(ctx, clientID)
}

// createClient connects a new client and stores it in the pool
func (cp *ClientPool) createClient(ctx context.Context, clientID string) (Client, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if cp.isInBackoffLocked(clientID) {
		return nil, fmt.Errorf("client %s is in backoff period, will retry later", clientID)
	}

	// Double-check after acquiring write lock
	if client, exists := cp.clients[clientID]; exists && client.IsHealthy() {
		return client, nil
	}

	record, err := cp.clientStore.Get(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client config: %w", err)
	}

	password, err := cp.clientStore.DecryptedPassword(record)
	if err != nil {
		return nil, fmt.Errorf("failed to decode password: %w", err)
	}

	adapter := New(Config{
		ID:       record.ID,
		Name:     record.Name,
		Type:     ClientType(record.ClientType),
		Host:     record.Host,
		Port:     record.Port,
		Username: record.Username,
		Password: password,
		UseHTTPS: record.UseHTTPS,
	})

	if _, err := adapter.TestConnection(ctx); err != nil {
		cp.trackFailureLocked(clientID, err)
		return nil, fmt.Errorf("failed to connect to %s: %w", record.Name, err)
	}

	client := &pooledClient{
		Client:          adapter,
		healthy:         true,
		lastHealthCheck: time.Now(),
	}
	cp.clients[clientID] = client
	cp.resetFailureTrackingLocked(clientID)

	return client, nil
}

// RemoveClient removes a client from the pool, e.g. after its config changed
func (cp *ClientPool) RemoveClient(clientID string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	delete(cp.clients, clientID)
	delete(cp.failures, clientID)
	log.Info().Str("clientID", clientID).Msg("Removed client from pool")
}

// CachedFiles returns a previously cached file listing for a torrent.
func (cp *ClientPool) CachedFiles(clientID, hash string) ([]TorrentFile, bool) {
	value, found := cp.cache.Get(fileCacheKey(clientID, hash))
	if !found {
		return nil, false
	}
	files, ok := value.([]TorrentFile)
	return files, ok
}

// CacheFiles stores a torrent's file listing for later imports or previews.
func (cp *ClientPool) CacheFiles(clientID, hash string, files []TorrentFile) {
	cp.cache.SetWithTTL(fileCacheKey(clientID, hash), files, int64(len(files)+1), fileCacheTTL)
}

func fileCacheKey(clientID, hash string) string {
	return "files:" + clientID + ":" + hash
}

// healthCheckLoop periodically checks the health of all clients
func (cp *ClientPool) healthCheckLoop() {
	for {
		select {
		case <-cp.healthTicker.C:
			cp.performHealthChecks()
		case <-cp.stopHealth:
			return
		}
	}
}

func (cp *ClientPool) performHealthChecks() {
	cp.mu.RLock()
	clients := make(map[string]*pooledClient, len(cp.clients))
	for id, client := range cp.clients {
		clients[id] = client
	}
	cp.mu.RUnlock()

	for clientID, client := range clients {
		// Skip if recently checked
		if time.Since(client.LastHealthCheck()) < minHealthCheckInterval {
			continue
		}
		if cp.isInBackoff(clientID) {
			continue
		}

		go func(client *pooledClient, clientID string) {
			ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
			defer cancel()

			if err := client.HealthCheck(ctx); err != nil {
				log.Warn().Err(err).Str("clientID", clientID).Msg("Health check failed")
				cp.trackFailure(clientID, err)

				// Don't try to reconnect if we're now in backoff
				if !cp.isInBackoff(clientID) {
					if _, err := cp.createClient(ctx, clientID); err != nil {
						log.Error().Err(err).Str("clientID", clientID).Msg("Failed to reconnect client")
					}
				}
			} else {
				cp.resetFailureTracking(clientID)
			}
		}(client, clientID)
	}
}

// Close closes all clients and releases resources
func (cp *ClientPool) Close() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if cp.closed {
		return nil
	}

	cp.closed = true
	close(cp.stopHealth)
	cp.healthTicker.Stop()

	for id := range cp.clients {
		delete(cp.clients, id)
	}
	cp.failures = make(map[string]*failureInfo)

	cp.cache.Close()

	log.Info().Msg("Client pool closed")
	return nil
}

// Stats returns statistics about the pool
func (cp *ClientPool) Stats() map[string]interface{} {
	cp.mu.RLock()
	defer cp.mu.RUnlock()

	healthyCount := 0
	for _, client := range cp.clients {
		if client.IsHealthy() {
			healthyCount++
		}
	}

	backoffCount := 0
	for _, info := range cp.failures {
		if time.Now().Before(info.nextRetry) {
			backoffCount++
		}
	}

	return map[string]interface{}{
		"total_clients":   len(cp.clients),
		"healthy_clients": healthyCount,
		"backoff_clients": backoffCount,
		"cache_hits":      cp.cache.Metrics.Hits(),
		"cache_misses":    cp.cache.Metrics.Misses(),
	}
}

func (cp *ClientPool) isInBackoff(clientID string) bool {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.isInBackoffLocked(clientID)
}

func (cp *ClientPool) isInBackoffLocked(clientID string) bool {
	info, exists := cp.failures[clientID]
	if !exists {
		return false
	}
	return time.Now().Before(info.nextRetry)
}

// trackFailure records a failure and applies exponential backoff
func (cp *ClientPool) trackFailure(clientID string, err error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.trackFailureLocked(clientID, err)
}

func (cp *ClientPool) trackFailureLocked(clientID string, err error) {
	info, exists := cp.failures[clientID]
	if !exists {
		info = &failureInfo{}
		cp.failures[clientID] = info
	}

	info.attempts++

	var backoffDuration time.Duration
	if isBanError(err) {
		backoffDuration = calculateBackoff(info.attempts, banInitialBackoff, banMaxBackoff)
		log.Warn().Str("clientID", clientID).Int("attempts", info.attempts).Dur("backoffDuration", backoffDuration).Msg("Ban detected, applying extended backoff")
	} else {
		backoffDuration = calculateBackoff(info.attempts, initialBackoff, maxBackoff)
		log.Debug().Str("clientID", clientID).Int("attempts", info.attempts).Dur("backoffDuration", backoffDuration).Msg("Connection failure, applying backoff")
	}

	info.nextRetry = time.Now().Add(backoffDuration)
}

// calculateBackoff returns exponential backoff duration with limits
func calculateBackoff(attempts int, initialDuration, maxDuration time.Duration) time.Duration {
	backoff := time.Duration(1<<(attempts-1)) * initialDuration
	if backoff > maxDuration {
		backoff = maxDuration
	}
	return backoff
}

func (cp *ClientPool) resetFailureTracking(clientID string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.resetFailureTrackingLocked(clientID)
}

func (cp *ClientPool) resetFailureTrackingLocked(clientID string) {
	if _, exists := cp.failures[clientID]; exists {
		delete(cp.failures, clientID)
		log.Debug().Str("clientID", clientID).Msg("Reset failure tracking after successful connection")
	}
}

// isBanError checks if the error indicates a login ban or rate limit
func isBanError(err error) bool {
	if err == nil {
		return false
	}

	errorStr := strings.ToLower(err.Error())

	return strings.Contains(errorStr, "ip is banned") ||
		strings.Contains(errorStr, "too many failed login attempts") ||
		strings.Contains(errorStr, "banned") ||
		strings.Contains(errorStr, "rate limit") ||
		strings.Contains(errorStr, "403") ||
		strings.Contains(errorStr, "forbidden")
}

// BackoffStatus returns the backoff status for a client (useful for debugging)
func (cp *ClientPool) BackoffStatus(clientID string) (inBackoff bool, nextRetry time.Time, attempts int) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()

	info, exists := cp.failures[clientID]
	if !exists {
		return false, time.Time{}, 0
	}

	return time.Now().Before(info.nextRetry), info.nextRetry, info.attempts
}
