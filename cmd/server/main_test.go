package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizreg/internal/attachment"
	"bizreg/internal/audit"
	authhandler "bizreg/internal/auth/handler"
	authservice "bizreg/internal/auth/service"
	"bizreg/internal/auth/token"
	drafthandler "bizreg/internal/draft/handler"
	"bizreg/internal/objectstore"
	"bizreg/internal/platform/config"
	"bizreg/internal/platform/middleware"
)

func newTestServer(t *testing.T) (*httptest.Server, *audit.InMemorySink) {
	t.Helper()
	t.Setenv("BIZREG_DEV_AUTH", "true")
	cfg, err := config.Load("")
	require.NoError(t, err)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := &infra{}
	registry := prometheus.NewRegistry()
	sink := audit.NewInMemorySink()
	publisher := audit.NewPublisher(sink)

	objects, err := newObjectStore(cfg)
	require.NoError(t, err)
	files := attachment.NewManager(objects)
	drafts, err := newDraftService(context.Background(), cfg, deps, files, publisher, registry, log)
	require.NoError(t, err)
	auth, err := authservice.New(token.New(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL),
		newRevocationList(deps), authservice.WithAuditPublisher(publisher))
	require.NoError(t, err)

	router := newRouter(cfg, log, registry, routes{
		drafts:  drafthandler.New(drafts, log, drafthandler.WithIdempotency(newIdempotencyStore(cfg, deps))),
		auth:    authhandler.New(auth, log),
		files:   objectstore.NewHandler(objects, log),
		health:  newHealth(deps),
		authMw:  middleware.RequireAuth(auth, log),
		devAuth: cfg.Auth.DevAuth,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, sink
}

func call(t *testing.T, srv *httptest.Server, method, path, bearer, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSessionLifecycle(t *testing.T) {
	srv, sink := newTestServer(t)

	resp := call(t, srv, http.MethodPost, "/auth/dev-token", "", `{"user_id":"3d1f0c2a-5b6e-4f70-8a9b-0c1d2e3f4a5b"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var issued authhandler.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&issued))
	require.NotEmpty(t, issued.AccessToken)

	resp = call(t, srv, http.MethodPut, "/drafts", "", `{"jurisdiction":"Wyoming"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = call(t, srv, http.MethodPut, "/drafts", issued.AccessToken, `{"jurisdiction":"Wyoming","jurisdiction_fee":"100","current_step":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
	var draft struct {
		ID              string `json:"id"`
		JurisdictionFee string `json:"jurisdiction_fee"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&draft))
	assert.Equal(t, "100", draft.JurisdictionFee)

	resp = call(t, srv, http.MethodGet, "/drafts/"+draft.ID, issued.AccessToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = call(t, srv, http.MethodPost, "/auth/logout", issued.AccessToken, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = call(t, srv, http.MethodGet, "/drafts/"+draft.ID, issued.AccessToken, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, []audit.Action{audit.ActionDraftCreated, audit.ActionSessionRevoked}, sink.Actions())
}

func TestOperationalEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := call(t, srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	call(t, srv, http.MethodGet, "/drafts", "", "")
	resp = call(t, srv, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "bizreg_http_request_duration_seconds")
}
