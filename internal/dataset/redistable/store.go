package redistable

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mohammed-shakir/urbansphere/internal/dataset"
)

// ErrInvalidDocument marks a Put whose document is not a readable
// FeatureCollection; retrying it cannot succeed.
var ErrInvalidDocument = errors.New("invalid table document")

// ErrStale marks a write whose sequence is not newer than the last one
// applied to the table.
var ErrStale = errors.New("stale table sequence")

// Store keeps one GeoJSON FeatureCollection per table under a namespace,
// plus an index hash of table -> last applied sequence.
type Store struct {
	c  *Client
	ns string
}

var _ dataset.Source = (*Store)(nil)

func NewStore(c *Client, ns string) *Store {
	return &Store{c: c, ns: ns}
}

// Put validates doc as a FeatureCollection for table and stores it.
func (s *Store) Put(ctx context.Context, table string, doc []byte, seq uint64) error {
	if table == "" {
		return fmt.Errorf("put: empty table name")
	}
	if _, err := dataset.DecodeGeoJSON(doc, table, table); err != nil {
		return fmt.Errorf("put %s: %w: %w", table, ErrInvalidDocument, err)
	}
	ok, err := s.c.PutIndexed(ctx, TableKey(s.ns, table), doc, IndexKey(s.ns), WatermarkKey(s.ns), table, seq)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("put %s@%d: %w", table, seq, ErrStale)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, table string) ([]byte, bool, error) {
	return s.c.Get(ctx, TableKey(s.ns, table))
}

// Delete removes table unless a write with a sequence >= seq was applied.
func (s *Store) Delete(ctx context.Context, table string, seq uint64) error {
	ok, err := s.c.DelIndexed(ctx, TableKey(s.ns, table), IndexKey(s.ns), WatermarkKey(s.ns), table, seq)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete %s@%d: %w", table, seq, ErrStale)
	}
	return nil
}

// Watermark returns the highest sequence applied to table, including deletes.
func (s *Store) Watermark(ctx context.Context, table string) (uint64, bool, error) {
	v, ok, err := s.c.HGet(ctx, WatermarkKey(s.ns), table)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("watermark %q: %w", table, err)
	}
	return n, true, nil
}

// Tables lists stored tables with the sequence of their last write.
func (s *Store) Tables(ctx context.Context) (map[string]uint64, error) {
	raw, err := s.c.HGetAll(ctx, IndexKey(s.ns))
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint64, len(raw))
	for t, v := range raw {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("index entry %q: %w", t, err)
		}
		out[t] = n
	}
	return out, nil
}

// Fetch reads the table document; the locator is ignored since the store is
// already bound to one server and namespace.
func (s *Store) Fetch(ctx context.Context, _ string, table string) (*dataset.Table, error) {
	b, ok, err := s.Get(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("table %q not found in namespace %q", table, nsOrDefault(s.ns))
	}
	return dataset.DecodeGeoJSON(b, table, table)
}
