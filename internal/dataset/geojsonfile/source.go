// Package geojsonfile serves dataset tables from GeoJSON files, directories
// of GeoJSON files, or GeoJSON documents behind http(s) URLs.
package geojsonfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammed-shakir/urbansphere/internal/core/observability"
	"github.com/mohammed-shakir/urbansphere/internal/dataset"
)

const maxDocumentBytes = 256 << 20

func init() {
	for _, s := range []string{"file", "http", "https"} {
		dataset.Register(s, func(cfg dataset.Config) (dataset.Source, error) {
			return New(cfg.DataDir, cfg.HTTPClient), nil
		})
	}
}

type Source struct {
	dataDir string
	client  *http.Client
}

var _ dataset.Source = (*Source)(nil)

func New(dataDir string, client *http.Client) *Source {
	if client == nil {
		client = http.DefaultClient
	}
	return &Source{dataDir: dataDir, client: client}
}

func (s *Source) Fetch(ctx context.Context, locator, table string) (*dataset.Table, error) {
	switch dataset.Scheme(locator) {
	case "http", "https":
		return s.fetchHTTP(ctx, locator, table)
	default:
		return s.fetchFile(ctx, locator, table)
	}
}

func (s *Source) fetchFile(ctx context.Context, locator, table string) (*dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.resolve(locator)

	fi, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}
	if fi.IsDir() {
		p, err = findTable(p, table)
		if err != nil {
			return nil, err
		}
	}

	start := time.Now()
	data, err := os.ReadFile(p)
	observability.ObserveStoreOp("file_read", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return dataset.DecodeGeoJSON(data, table, stem(p))
}

func (s *Source) fetchHTTP(ctx context.Context, locator, table string) (*dataset.Table, error) {
	u, err := dataset.ParseURL(locator)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		observability.ObserveStoreOp("http_get", err, time.Since(start).Seconds())
		return nil, fmt.Errorf("GET %s: %w", u.Redacted(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		err := fmt.Errorf("GET %s: unexpected status %d", u.Redacted(), resp.StatusCode)
		observability.ObserveStoreOp("http_get", err, time.Since(start).Seconds())
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	observability.ObserveStoreOp("http_get", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return dataset.DecodeGeoJSON(data, table, stem(u.Path))
}

// resolve strips a file:// prefix and anchors relative paths at dataDir.
func (s *Source) resolve(locator string) string {
	p := strings.TrimSpace(locator)
	p = strings.TrimPrefix(p, "file://")
	p = filepath.FromSlash(p)
	if !filepath.IsAbs(p) && s.dataDir != "" {
		p = filepath.Join(s.dataDir, p)
	}
	return filepath.Clean(p)
}

func findTable(dir, table string) (string, error) {
	for _, ext := range []string{".geojson", ".json"} {
		p := filepath.Join(dir, table+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return "", fmt.Errorf("table %q not found in %s: %w", table, dir, os.ErrNotExist)
}

func stem(p string) string {
	b := path.Base(filepath.ToSlash(p))
	return strings.TrimSuffix(b, path.Ext(b))
}
