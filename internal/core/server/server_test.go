package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/urbansphere/internal/core/config"
	"github.com/mohammed-shakir/urbansphere/internal/core/health"
	"github.com/mohammed-shakir/urbansphere/internal/core/model"
	"github.com/mohammed-shakir/urbansphere/internal/core/router"
	"github.com/mohammed-shakir/urbansphere/internal/layer"
	"github.com/mohammed-shakir/urbansphere/internal/pipeline"
)

type emptyLoader struct{}

func (emptyLoader) Load(_ context.Context, spec model.LayerSpec) (model.LayerCollection, error) {
	return model.LayerCollection{Layer: spec.Name, CRS: "EPSG:4326"}, nil
}

func newTestHandler(cfg config.Config, checks ...health.Check) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := layer.Default()
	h := router.New(pipeline.New(reg, emptyLoader{}, log), reg, cfg, log)
	return NewHandler(cfg, log, h, checks...)
}

func serve(h http.Handler, method, path string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestNewHandler_ProbesAndRoutes(t *testing.T) {
	h := newTestHandler(config.Config{CORSOrigins: []string{"*"}, TopNDefault: 10})

	rr := serve(h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	rr = serve(h, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(h, http.MethodGet, "/api/layers")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rr.Header().Get("ETag"))

	rr = serve(h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(h, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNewHandler_MetricsMovedToOwnListener(t *testing.T) {
	cfg := config.Config{CORSOrigins: []string{"*"}}
	cfg.Metrics.Enabled = true
	rr := serve(newTestHandler(cfg), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNewHandler_ReadinessFailure(t *testing.T) {
	down := health.CheckFunc{N: "redis", F: func() (bool, string) { return false, "dial refused" }}
	rr := serve(newTestHandler(config.Config{}, down), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "dial refused")
}

func TestNewHandler_CORSPreflight(t *testing.T) {
	h := newTestHandler(config.Config{CORSOrigins: []string{"https://dash.example"}})
	rr := serve(h, http.MethodOptions, "/api/map",
		"Origin", "https://dash.example",
		"Access-Control-Request-Method", http.MethodGet)
	assert.Equal(t, "https://dash.example", rr.Header().Get("Access-Control-Allow-Origin"))
}
