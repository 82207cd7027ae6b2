package wfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohammed-shakir/urbansphere/internal/core/observability"
	"github.com/mohammed-shakir/urbansphere/internal/dataset"
)

const maxDocumentBytes = 256 << 20

func init() {
	for _, s := range []string{"wfs", "wfss"} {
		dataset.Register(s, func(cfg dataset.Config) (dataset.Source, error) {
			return New(cfg.HTTPClient), nil
		})
	}
}

type Source struct {
	client *http.Client
}

var _ dataset.Source = (*Source)(nil)

func New(client *http.Client) *Source {
	if client == nil {
		client = http.DefaultClient
	}
	return &Source{client: client}
}

// Fetch requests the feature type named table as GeoJSON. The feature type
// may carry a workspace prefix ("topp:states"); the table is matched on the
// full name.
func (s *Source) Fetch(ctx context.Context, locator, table string) (*dataset.Table, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	u := *loc.OWS
	u.RawQuery = GetFeatureParams(table, loc.Extra).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		observability.ObserveStoreOp("wfs_get_feature", err, time.Since(start).Seconds())
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		err := fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		observability.ObserveStoreOp("wfs_get_feature", err, time.Since(start).Seconds())
		return nil, err
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	observability.ObserveStoreOp("wfs_get_feature", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	// exception reports come back as XML with a 200
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "xml") {
		return nil, fmt.Errorf("upstream returned %s: %s", ct, strings.TrimSpace(string(b[:min(len(b), 512)])))
	}
	return dataset.DecodeGeoJSON(b, table, table)
}
