package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/graftseed/graft/internal/btclient"
	"github.com/graftseed/graft/internal/models"
)

// ClientProvider hands out connected download clients. Satisfied by
// btclient.ClientPool.
type ClientProvider interface {
	GetClient(ctx context.Context, clientID string) (btclient.Client, error)
	RemoveClient(clientID string)
}

type ClientsHandler struct {
	clientStore *models.ClientStore
	pool        ClientProvider
}

func NewClientsHandler(clientStore *models.ClientStore, pool ClientProvider) *ClientsHandler {
	return &ClientsHandler{
		clientStore: clientStore,
		pool:        pool,
	}
}

// ClientRequest carries the full client config for create and replace.
// The password is optional on replace; an empty one keeps the stored value.
type ClientRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	UseHTTPS bool   `json:"use_https"`
	Enabled  *bool  `json:"enabled"`
}

// List returns all configured clients
func (h *ClientsHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clientStore.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list clients")
		RespondError(w, http.StatusInternalServerError, "Failed to list clients")
		return
	}

	RespondJSON(w, http.StatusOK, clients)
}

// Create registers a new download client
func (h *ClientsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" || req.Type == "" || req.Host == "" || req.Port == 0 {
		RespondError(w, http.StatusBadRequest, "Name, type, host, and port are required")
		return
	}
	clientType, err := btclient.ParseClientType(req.Type)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid client type")
		return
	}

	client, err := h.clientStore.Create(r.Context(), req.Name, string(clientType), req.Host, req.Port, req.Username, req.Password, req.UseHTTPS)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create client")
		RespondError(w, http.StatusInternalServerError, "Failed to create client")
		return
	}

	RespondJSON(w, http.StatusCreated, client)
}

// Get returns one client
func (h *ClientsHandler) Get(w http.ResponseWriter, r *http.Request) {
	client, err := h.clientStore.Get(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		if errors.Is(err, models.ErrClientNotFound) {
			RespondError(w, http.StatusNotFound, "Client not found")
			return
		}
		log.Error().Err(err).Msg("Failed to get client")
		RespondError(w, http.StatusInternalServerError, "Failed to get client")
		return
	}

	RespondJSON(w, http.StatusOK, client)
}

// Update replaces a client config
func (h *ClientsHandler) Update(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" || req.Type == "" || req.Host == "" || req.Port == 0 {
		RespondError(w, http.StatusBadRequest, "Name, type, host, and port are required")
		return
	}
	clientType, err := btclient.ParseClientType(req.Type)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid client type")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	client, err := h.clientStore.Update(r.Context(), clientID, req.Name, string(clientType), req.Host, req.Port, req.Username, req.Password, req.UseHTTPS, enabled)
	if err != nil {
		if errors.Is(err, models.ErrClientNotFound) {
			RespondError(w, http.StatusNotFound, "Client not found")
			return
		}
		log.Error().Err(err).Msg("Failed to update client")
		RespondError(w, http.StatusInternalServerError, "Failed to update client")
		return
	}

	// Drop any pooled connection so the next call picks up the new config.
	h.pool.RemoveClient(clientID)

	RespondJSON(w, http.StatusOK, client)
}

// Delete removes a client
func (h *ClientsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	if err := h.clientStore.Delete(r.Context(), clientID); err != nil {
		if errors.Is(err, models.ErrClientNotFound) {
			RespondError(w, http.StatusNotFound, "Client not found")
			return
		}
		log.Error().Err(err).Msg("Failed to delete client")
		RespondError(w, http.StatusInternalServerError, "Failed to delete client")
		return
	}

	h.pool.RemoveClient(clientID)

	RespondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Test checks whether the client is reachable. Connection problems land in
// the message, not in the HTTP status.
func (h *ClientsHandler) Test(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	if _, err := h.clientStore.Get(r.Context(), clientID); err != nil {
		if errors.Is(err, models.ErrClientNotFound) {
			RespondError(w, http.StatusNotFound, "Client not found")
			return
		}
		log.Error().Err(err).Msg("Failed to get client")
		RespondError(w, http.StatusInternalServerError, "Failed to get client")
		return
	}

	client, err := h.pool.GetClient(r.Context(), clientID)
	if err != nil {
		RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"message": err.Error(),
		})
		return
	}

	if ok, err := client.TestConnection(r.Context()); !ok || err != nil {
		message := "Connection failed"
		if err != nil {
			message = err.Error()
		}
		RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"message": message,
		})
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Connection successful",
	})
}

// Torrents lists the torrents of one client
func (h *ClientsHandler) Torrents(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	client, err := h.pool.GetClient(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, models.ErrClientNotFound) {
			RespondError(w, http.StatusNotFound, "Client not found")
			return
		}
		log.Error().Err(err).Str("clientID", clientID).Msg("Failed to connect to client")
		RespondError(w, http.StatusInternalServerError, "Failed to connect to client")
		return
	}

	torrents, err := client.GetTorrents(r.Context())
	if err != nil {
		log.Error().Err(err).Str("clientID", clientID).Msg("Failed to list torrents")
		RespondError(w, http.StatusInternalServerError, "Failed to list torrents")
		return
	}

	if search := r.URL.Query().Get("search"); search != "" {
		torrents = btclient.FilterTorrents(torrents, search)
	}

	RespondJSON(w, http.StatusOK, torrents)
}
