package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graftseed/graft/internal/sites"
)

// TestSitesCreateBuiltin checks that a builtin id pulls the catalog config
// and only the secrets come from the request.
func TestSitesCreateBuiltin(t *testing.T) {
	env := newHandlerEnv(t)
	router := newTestRouter(env, &fakeProvider{})

	rec := doRequest(t, router, http.MethodPost, "/api/sites", map[string]any{
		"id":      "hdsky",
		"passkey": "pk-secret",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	var created SiteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "hdsky", created.ID)
	assert.Equal(t, "HDSky", created.Name)
	assert.Equal(t, "https://hdsky.me", created.BaseURL)
	assert.Equal(t, "nexusphp", created.TemplateType)
	assert.True(t, created.HasPasskey)
	assert.False(t, created.HasCookie)
	assert.True(t, created.Enabled)
	assert.NotContains(t, rec.Body.String(), "pk-secret", "the passkey must never leave the API")

	domains, err := env.sites.TrackerDomains(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hdsky", domains["hdsky.me"], "builtin tracker domains should be registered")
}

func TestSitesCreateCustom(t *testing.T) {
	env := newHandlerEnv(t)
	router := newTestRouter(env, &fakeProvider{})

	rec := doRequest(t, router, http.MethodPost, "/api/sites", map[string]any{
		"id": "homebrew",
	})
	assertError(t, rec, http.StatusBadRequest, "base_url is required for custom sites")

	rec = doRequest(t, router, http.MethodPost, "/api/sites", map[string]any{
		"id":              "homebrew",
		"base_url":        "https://pt.homebrew.example",
		"passkey":         "pk",
		"tracker_domains": []string{"tracker.homebrew.example"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	var created SiteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "homebrew", created.Name, "name defaults to the id")
	assert.Equal(t, string(sites.TemplateNexusPHP), created.TemplateType)

	domains, err := env.sites.TrackerDomains(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "homebrew", domains["tracker.homebrew.example"])
}

func TestSitesCreateValidation(t *testing.T) {
	env := newHandlerEnv(t)
	router := newTestRouter(env, &fakeProvider{})

	rec := doRequest(t, router, http.MethodPost, "/api/sites", map[string]any{})
	assertError(t, rec, http.StatusBadRequest, "Site ID is required")

	rec = doRequest(t, router, http.MethodPost, "/api/sites", map[string]any{
		"id":            "weird",
		"base_url":      "https://weird.example",
		"template_type": "mulberry",
	})
	assertError(t, rec, http.StatusBadRequest, "Invalid template type")
}

func TestSitesAvailable(t *testing.T) {
	env := newHandlerEnv(t)
	router := newTestRouter(env, &fakeProvider{})

	rec := doRequest(t, router, http.MethodGet, "/api/sites/available", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var catalog []sites.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &catalog))
	require.NotEmpty(t, catalog)

	ids := make(map[string]bool, len(catalog))
	for _, c := range catalog {
		ids[c.ID] = true
	}
	assert.True(t, ids["mteam"])
	assert.True(t, ids["redacted"])
}

func TestSitesUpdatePartial(t *testing.T) {
	env := newHandlerEnv(t)
	router := newTestRouter(env, &fakeProvider{})

	rec := doRequest(t, router, http.MethodPost, "/api/sites", map[string]any{
		"id":      "hdsky",
		"passkey": "pk",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodPut, "/api/sites/hdsky", map[string]any{
		"enabled": false,
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var updated SiteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.False(t, updated.Enabled)
	assert.True(t, updated.HasPasskey, "a partial update must not wipe the stored passkey")

	rec = doRequest(t, router, http.MethodPut, "/api/sites/hdsky", map[string]any{})
	assertError(t, rec, http.StatusBadRequest, "No fields to update")

	rec = doRequest(t, router, http.MethodPut, "/api/sites/hdsky", map[string]any{
		"template_type": "mulberry",
	})
	assertError(t, rec, http.StatusBadRequest, "Invalid template type")

	rec = doRequest(t, router, http.MethodPut, "/api/sites/ghost", map[string]any{
		"enabled": true,
	})
	assertError(t, rec, http.StatusNotFound, "Site not found")
}

func TestSitesDelete(t *testing.T) {
	env := newHandlerEnv(t)
	router := newTestRouter(env, &fakeProvider{})

	rec := doRequest(t, router, http.MethodPost, "/api/sites", map[string]any{
		"id":      "hdsky",
		"passkey": "pk",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/api/sites/hdsky", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":true}`, rec.Body.String())

	domains, err := env.sites.TrackerDomains(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, domains, "hdsky.me", "deleting a site drops its domain registrations")

	rec = doRequest(t, router, http.MethodGet, "/api/sites/hdsky", nil)
	assertError(t, rec, http.StatusNotFound, "Site not found")

	rec = doRequest(t, router, http.MethodDelete, "/api/sites/hdsky", nil)
	assertError(t, rec, http.StatusNotFound, "Site not found")
}

func TestSitesList(t *testing.T) {
	env := newHandlerEnv(t)
	router := newTestRouter(env, &fakeProvider{})

	for _, id := range []string{"hdsky", "mteam"} {
		rec := doRequest(t, router, http.MethodPost, "/api/sites", map[string]any{
			"id":      id,
			"passkey": "pk-" + id,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doRequest(t, router, http.MethodGet, "/api/sites", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []SiteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	for _, s := range list {
		assert.True(t, s.HasPasskey)
	}
}
