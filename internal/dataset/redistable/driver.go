package redistable

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/urbansphere/internal/dataset"
)

func init() {
	dataset.Register("redis", func(dataset.Config) (dataset.Source, error) {
		return NewDriver(), nil
	})
}

// Driver resolves redis:// locators to Stores, one client per server/db.
// The optional ns query parameter selects the key namespace.
type Driver struct {
	mu      sync.Mutex
	clients map[string]*Client
}

var _ dataset.Source = (*Driver)(nil)

func NewDriver() *Driver {
	return &Driver{clients: map[string]*Client{}}
}

func (d *Driver) Fetch(ctx context.Context, locator, table string) (*dataset.Table, error) {
	st, err := d.Open(ctx, locator)
	if err != nil {
		return nil, err
	}
	return st.Fetch(ctx, locator, table)
}

// Open returns a Store for the locator, dialing on first use.
func (d *Driver) Open(ctx context.Context, locator string) (*Store, error) {
	opts, ns, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("%s/%d", opts.Addr, opts.DB)

	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clients[id]
	if !ok {
		dctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		c, err = NewClient(dctx, opts.Addr, WithDB(opts.DB), WithPassword(opts.Password))
		if err != nil {
			return nil, err
		}
		d.clients[id] = c
	}
	return NewStore(c, ns), nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	for id, c := range d.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(d.clients, id)
	}
	return errors.Join(errs...)
}

// ParseLocator splits a redis:// locator into client options and namespace.
func ParseLocator(locator string) (*redis.Options, string, error) {
	u, err := dataset.ParseURL(locator)
	if err != nil {
		return nil, "", err
	}
	q := u.Query()
	ns := q.Get("ns")
	q.Del("ns")
	u.RawQuery = q.Encode()

	opts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, "", fmt.Errorf("redis locator: %w", err)
	}
	return opts, ns, nil
}
