// Package model defines core domain types shared across the service.
package model

import (
	"fmt"

	"github.com/paulmach/orb"
)

// NumClasses is the number of color classes every thematic layer is bucketed into.
const NumClasses = 5

// RGBA is a fill color with alpha, encoded as a 4-element JSON array.
type RGBA [4]uint8

// RGB drops the alpha channel.
func (c RGBA) RGB() [3]uint8 { return [3]uint8{c[0], c[1], c[2]} }

func (c RGBA) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", c[0], c[1], c[2], c[3])
}

// LayerSpec describes one thematic layer: where its data lives and how its
// metric is bucketed. Immutable once registered.
type LayerSpec struct {
	Name         string
	Source       string
	Table        string
	ValueColumn  string
	RegionColumn string
	PeriodColumn string
	BinEdges     [NumClasses + 1]float64
	Colors       [NumClasses]RGBA
}

const (
	DefaultRegionColumn = "st_nm"
	DefaultPeriodColumn = "year"
)

// WithDefaults fills in optional columns.
func (s LayerSpec) WithDefaults() LayerSpec {
	if s.RegionColumn == "" {
		s.RegionColumn = DefaultRegionColumn
	}
	if s.PeriodColumn == "" {
		s.PeriodColumn = DefaultPeriodColumn
	}
	return s
}

type FeatureRecord struct {
	RegionName string
	Geometry   orb.Geometry
	RawValue   *float64
	Period     *string
	LayerName  string
	ClassIndex *int
	Color      *RGBA
	Properties map[string]any
}

// HasValue reports whether the record carries a usable numeric value.
func (r FeatureRecord) HasValue() bool { return r.RawValue != nil }

// Value returns the raw value or 0 when absent.
func (r FeatureRecord) Value() float64 {
	if r.RawValue == nil {
		return 0
	}
	return *r.RawValue
}

// LayerCollection is every record of one layer, in source order. CRS is the
// reference-system tag of the table the records came from.
type LayerCollection struct {
	Layer     string
	CRS       string
	HasPeriod bool
	Records   []FeatureRecord
}

func (c LayerCollection) Len() int { return len(c.Records) }

// CompositeCollection holds the records of all selected layers, reprojected
// to EPSG:4326, in selection order.
type CompositeCollection struct {
	Layers  []string
	Records []FeatureRecord
}

func (c CompositeCollection) Len() int { return len(c.Records) }

type MapType string

const (
	MapChoropleth MapType = "choropleth"
	MapHeatmap    MapType = "heatmap"
)

// Selection is the user-controlled input of one recomputation.
type Selection struct {
	Layers  []string
	Search  string
	MapType MapType
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
