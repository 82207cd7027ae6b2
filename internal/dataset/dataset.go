// Package dataset reads geometry+attribute tables from dataset locators.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"
)

type Row struct {
	Geometry   orb.Geometry
	Attributes map[string]any
}

// Table is one named table of a dataset. CRS is the reference-system tag
// reported by the store; empty when the store could not tell.
type Table struct {
	Name string
	CRS  string
	Rows []Row
}

type Source interface {
	Fetch(ctx context.Context, locator, table string) (*Table, error)
}

// Config is handed to every driver factory.
type Config struct {
	DataDir    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Factory func(cfg Config) (Source, error)

var (
	regMu sync.RWMutex
	reg   = map[string]Factory{}
)

// Register makes a driver available for a locator scheme. Drivers call it
// from init.
func Register(scheme string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	reg[strings.ToLower(scheme)] = f
}

// Schemes lists registered schemes, sorted.
func Schemes() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(reg))
	for s := range reg {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Scheme extracts the locator scheme; plain paths report "file".
func Scheme(locator string) string {
	l := strings.TrimSpace(locator)
	i := strings.Index(l, "://")
	if i <= 0 {
		return "file"
	}
	return strings.ToLower(l[:i])
}

// Mux dispatches Fetch calls to the driver registered for the locator's
// scheme. Drivers are built on first use and kept for the process lifetime;
// they hold connections, never table contents.
type Mux struct {
	cfg Config

	mu      sync.Mutex
	drivers map[string]Source
}

var _ Source = (*Mux)(nil)

func NewMux(cfg Config) *Mux {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Mux{cfg: cfg, drivers: map[string]Source{}}
}

func (m *Mux) Fetch(ctx context.Context, locator, table string) (*Table, error) {
	d, err := m.driver(Scheme(locator))
	if err != nil {
		return nil, err
	}
	return d.Fetch(ctx, locator, table)
}

func (m *Mux) driver(scheme string) (Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.drivers[scheme]; ok {
		return d, nil
	}

	regMu.RLock()
	f, ok := reg[scheme]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no dataset driver registered for scheme %q", scheme)
	}
	d, err := f(m.cfg)
	if err != nil {
		return nil, fmt.Errorf("init %s driver: %w", scheme, err)
	}
	m.drivers[scheme] = d
	return d, nil
}

// Close releases driver resources.
func (m *Mux) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for s, d := range m.drivers {
		if c, ok := d.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s driver: %w", s, err))
			}
		}
	}
	m.drivers = map[string]Source{}
	return errors.Join(errs...)
}

// ParseURL is a small helper for drivers with URL locators.
func ParseURL(locator string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil {
		return nil, fmt.Errorf("parse locator: %w", err)
	}
	return u, nil
}
