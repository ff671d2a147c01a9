package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/graftseed/graft/internal/models"
	"github.com/graftseed/graft/internal/sites"
)

type SitesHandler struct {
	siteStore *models.SiteStore
}

func NewSitesHandler(siteStore *models.SiteStore) *SitesHandler {
	return &SitesHandler{siteStore: siteStore}
}

// SiteRequest creates or replaces a site. For builtin site ids every field
// except the secrets may be left empty; the builtin catalog fills the rest.
type SiteRequest struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	BaseURL         string   `json:"base_url"`
	TemplateType    string   `json:"template_type"`
	DownloadPattern string   `json:"download_pattern"`
	Passkey         string   `json:"passkey"`
	Cookie          string   `json:"cookie"`
	Authkey         string   `json:"authkey"`
	Enabled         *bool    `json:"enabled"`
	RateLimitRPM    int      `json:"rate_limit_rpm"`
	TrackerDomains  []string `json:"tracker_domains"`
}

// SiteResponse exposes a site without its secrets. has_passkey and
// has_cookie tell the UI whether the secrets are set.
type SiteResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	BaseURL         string    `json:"base_url"`
	TemplateType    string    `json:"template_type"`
	DownloadPattern string    `json:"download_pattern,omitempty"`
	HasPasskey      bool      `json:"has_passkey"`
	HasCookie       bool      `json:"has_cookie"`
	Enabled         bool      `json:"enabled"`
	RateLimitRPM    int       `json:"rate_limit_rpm,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func siteResponse(s *models.Site) SiteResponse {
	return SiteResponse{
		ID:              s.ID,
		Name:            s.Name,
		BaseURL:         s.BaseURL,
		TemplateType:    s.TemplateType,
		DownloadPattern: s.DownloadPattern,
		HasPasskey:      s.Passkey != "",
		HasCookie:       s.CookieEncrypted != "",
		Enabled:         s.Enabled,
		RateLimitRPM:    s.RateLimitRPM,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// List returns all configured sites ordered by name
func (h *SitesHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.siteStore.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sites")
		RespondError(w, http.StatusInternalServerError, "Failed to list sites")
		return
	}

	response := make([]SiteResponse, len(all))
	for i, s := range all {
		response[i] = siteResponse(s)
	}
	RespondJSON(w, http.StatusOK, response)
}

// Available returns the builtin site catalog
func (h *SitesHandler) Available(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, sites.BuiltinSites())
}

// Create upserts a site config. A builtin id pulls base URL, template and
// tracker domains from the catalog; a custom id must bring its own base URL.
func (h *SitesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ID == "" {
		RespondError(w, http.StatusBadRequest, "Site ID is required")
		return
	}

	domains := req.TrackerDomains
	if builtin, ok := sites.BuiltinSite(req.ID); ok {
		if req.Name == "" {
			req.Name = builtin.Name
		}
		if req.BaseURL == "" {
			req.BaseURL = builtin.BaseURL
		}
		if req.TemplateType == "" {
			req.TemplateType = string(builtin.TemplateType)
		}
		if req.DownloadPattern == "" {
			req.DownloadPattern = builtin.DownloadPattern
		}
		domains = append(append([]string{}, builtin.TrackerDomains...), req.TrackerDomains...)
	} else {
		if req.BaseURL == "" {
			RespondError(w, http.StatusBadRequest, "base_url is required for custom sites")
			return
		}
		if req.Name == "" {
			req.Name = req.ID
		}
		if req.TemplateType == "" {
			req.TemplateType = string(sites.TemplateNexusPHP)
		}
	}

	if _, err := sites.ParseTemplateType(req.TemplateType); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid template type")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	site, err := h.siteStore.Upsert(r.Context(), models.SiteUpsert{
		ID:              req.ID,
		Name:            req.Name,
		BaseURL:         req.BaseURL,
		TemplateType:    req.TemplateType,
		DownloadPattern: req.DownloadPattern,
		Passkey:         req.Passkey,
		Cookie:          req.Cookie,
		Authkey:         req.Authkey,
		Enabled:         enabled,
		RateLimitRPM:    req.RateLimitRPM,
	})
	if err != nil {
		log.Error().Err(err).Str("siteID", req.ID).Msg("Failed to save site")
		RespondError(w, http.StatusInternalServerError, "Failed to save site")
		return
	}

	if err := h.siteStore.RegisterTrackerDomains(r.Context(), site.ID, domains); err != nil {
		log.Error().Err(err).Str("siteID", site.ID).Msg("Failed to register tracker domains")
		RespondError(w, http.StatusInternalServerError, "Failed to register tracker domains")
		return
	}

	RespondJSON(w, http.StatusCreated, siteResponse(site))
}

// Get returns one site
func (h *SitesHandler) Get(w http.ResponseWriter, r *http.Request) {
	site, err := h.siteStore.Get(r.Context(), chi.URLParam(r, "siteID"))
	if err != nil {
		if errors.Is(err, models.ErrSiteNotFound) {
			RespondError(w, http.StatusNotFound, "Site not found")
			return
		}
		log.Error().Err(err).Msg("Failed to get site")
		RespondError(w, http.StatusInternalServerError, "Failed to get site")
		return
	}

	RespondJSON(w, http.StatusOK, siteResponse(site))
}

// SiteUpdateRequest is a partial update; absent fields stay untouched.
type SiteUpdateRequest struct {
	Name            *string `json:"name"`
	BaseURL         *string `json:"base_url"`
	TemplateType    *string `json:"template_type"`
	DownloadPattern *string `json:"download_pattern"`
	Passkey         *string `json:"passkey"`
	Cookie          *string `json:"cookie"`
	Authkey         *string `json:"authkey"`
	Enabled         *bool   `json:"enabled"`
	RateLimitRPM    *int    `json:"rate_limit_rpm"`
}

// Update applies a partial update to a site
func (h *SitesHandler) Update(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")

	var req SiteUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.TemplateType != nil {
		if _, err := sites.ParseTemplateType(*req.TemplateType); err != nil {
			RespondError(w, http.StatusBadRequest, "Invalid template type")
			return
		}
	}

	site, err := h.siteStore.Update(r.Context(), siteID, models.SiteUpdate{
		Name:            req.Name,
		BaseURL:         req.BaseURL,
		TemplateType:    req.TemplateType,
		DownloadPattern: req.DownloadPattern,
		Passkey:         req.Passkey,
		Cookie:          req.Cookie,
		Authkey:         req.Authkey,
		Enabled:         req.Enabled,
		RateLimitRPM:    req.RateLimitRPM,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSiteNotFound):
			RespondError(w, http.StatusNotFound, "Site not found")
		case errors.Is(err, models.ErrNoUpdateFields):
			RespondError(w, http.StatusBadRequest, "No fields to update")
		default:
			log.Error().Err(err).Str("siteID", siteID).Msg("Failed to update site")
			RespondError(w, http.StatusInternalServerError, "Failed to update site")
		}
		return
	}

	RespondJSON(w, http.StatusOK, siteResponse(site))
}

// Delete removes a site and its tracker domain registrations
func (h *SitesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")

	if err := h.siteStore.Delete(r.Context(), siteID); err != nil {
		if errors.Is(err, models.ErrSiteNotFound) {
			RespondError(w, http.StatusNotFound, "Site not found")
			return
		}
		log.Error().Err(err).Str("siteID", siteID).Msg("Failed to delete site")
		RespondError(w, http.StatusInternalServerError, "Failed to delete site")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
