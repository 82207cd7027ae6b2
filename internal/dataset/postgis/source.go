// Package postgis serves dataset tables from PostGIS. A table maps to a SQL
// table whose geometry column is returned as GeoJSON with its SRID.
package postgis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/urbansphere/internal/core/observability"
	"github.com/mohammed-shakir/urbansphere/internal/dataset"
)

const (
	defaultSchema   = "public"
	defaultGeometry = "geom"
)

func init() {
	for _, s := range []string{"postgres", "postgresql"} {
		dataset.Register(s, func(dataset.Config) (dataset.Source, error) {
			return New(), nil
		})
	}
}

// Locator is a parsed postgres:// dataset locator. schema and geom are
// consumed here; every other query parameter goes to the driver.
type Locator struct {
	DSN      string
	Schema   string
	Geometry string
}

func ParseLocator(locator string) (Locator, error) {
	u, err := dataset.ParseURL(locator)
	if err != nil {
		return Locator{}, err
	}
	q := u.Query()
	l := Locator{Schema: q.Get("schema"), Geometry: q.Get("geom")}
	q.Del("schema")
	q.Del("geom")
	u.RawQuery = q.Encode()
	l.DSN = u.String()
	if l.Schema == "" {
		l.Schema = defaultSchema
	}
	if l.Geometry == "" {
		l.Geometry = defaultGeometry
	}
	return l, nil
}

// Query builds the statement for one table. Identifiers are quoted.
func Query(schema, table, geom string) string {
	g := "t." + pq.QuoteIdentifier(geom)
	return fmt.Sprintf(
		`SELECT ST_AsGeoJSON(%s) AS geometry, ST_SRID(%s) AS srid, row_to_json(t)::text AS attrs FROM %s.%s AS t`,
		g, g, pq.QuoteIdentifier(schema), pq.QuoteIdentifier(table),
	)
}

type row struct {
	Geometry *string `db:"geometry"`
	SRID     *int64  `db:"srid"`
	Attrs    string  `db:"attrs"`
}

type Source struct {
	mu  sync.Mutex
	dbs map[string]*sqlx.DB
}

var _ dataset.Source = (*Source)(nil)

func New() *Source {
	return &Source{dbs: map[string]*sqlx.DB{}}
}

func (s *Source) Fetch(ctx context.Context, locator, table string) (*dataset.Table, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	db, err := s.db(loc.DSN)
	if err != nil {
		return nil, err
	}

	var rows []row
	start := time.Now()
	err = db.SelectContext(ctx, &rows, Query(loc.Schema, table, loc.Geometry))
	observability.ObserveStoreOp("postgis_select", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("select %s.%s: %w", loc.Schema, table, err)
	}
	return buildTable(table, loc.Geometry, rows)
}

func (s *Source) db(dsn string) (*sqlx.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[dsn]; ok {
		return db, nil
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	s.dbs[dsn] = db
	return db, nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for dsn, db := range s.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.dbs, dsn)
	}
	return errors.Join(errs...)
}

// buildTable converts query rows. All geometries must share one SRID; an
// SRID of 0 leaves the CRS undetermined.
func buildTable(table, geomCol string, rows []row) (*dataset.Table, error) {
	tbl := &dataset.Table{Name: table, Rows: make([]dataset.Row, 0, len(rows))}
	var srid int64 = -1
	for i, r := range rows {
		attrs := map[string]any{}
		if err := json.Unmarshal([]byte(r.Attrs), &attrs); err != nil {
			return nil, fmt.Errorf("row %d attributes: %w", i, err)
		}
		delete(attrs, geomCol)

		out := dataset.Row{Attributes: attrs}
		if r.Geometry != nil {
			g, err := geojson.UnmarshalGeometry([]byte(*r.Geometry))
			if err != nil {
				return nil, fmt.Errorf("row %d geometry: %w", i, err)
			}
			out.Geometry = g.Coordinates
		}
		if r.SRID != nil {
			switch {
			case srid == -1:
				srid = *r.SRID
			case srid != *r.SRID:
				return nil, fmt.Errorf("table %s mixes SRIDs %d and %d", table, srid, *r.SRID)
			}
		}
		tbl.Rows = append(tbl.Rows, out)
	}
	switch {
	case srid > 0:
		tbl.CRS = "EPSG:" + strconv.FormatInt(srid, 10)
	case srid == -1 && len(rows) == 0:
		tbl.CRS = "EPSG:4326"
	}
	return tbl, nil
}
