// Package compose merges classified layers into one EPSG:4326 collection and
// derives the render views from it.
package compose

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/mohammed-shakir/urbansphere/internal/core/model"
	"github.com/mohammed-shakir/urbansphere/internal/crs"
)

// Compose concatenates colls in order and reprojects every geometry to
// EPSG:4326. A layer whose reference system cannot be resolved fails the
// whole composition with *model.ProjectionError.
func Compose(colls ...model.LayerCollection) (model.CompositeCollection, error) {
	total := 0
	for _, c := range colls {
		total += len(c.Records)
	}
	out := model.CompositeCollection{
		Layers:  make([]string, 0, len(colls)),
		Records: make([]model.FeatureRecord, 0, total),
	}

	for _, c := range colls {
		out.Layers = append(out.Layers, c.Layer)
		if len(c.Records) == 0 {
			continue
		}
		if !crs.Supported(c.CRS) {
			return model.CompositeCollection{}, &model.ProjectionError{Layer: c.Layer, CRS: c.CRS}
		}
		for _, rec := range c.Records {
			g, err := crs.ToWGS84(rec.Geometry, c.CRS)
			if err != nil {
				return model.CompositeCollection{}, &model.ProjectionError{Layer: c.Layer, CRS: c.CRS}
			}
			rec.Geometry = g
			if rec.LayerName == "" {
				rec.LayerName = c.Layer
			}
			out.Records = append(out.Records, rec)
		}
	}
	return out, nil
}

// ClassGroup is the records of one layer that share a class.
type ClassGroup struct {
	Layer   string
	Class   int
	Color   model.RGBA
	Records []model.FeatureRecord
}

// GroupByLayerAndClass partitions classified records by (layer, class),
// ordered by selection order then class. Unclassified records are dropped.
func GroupByLayerAndClass(c model.CompositeCollection) []ClassGroup {
	type key struct {
		layer string
		class int
	}
	groups := map[key]*ClassGroup{}
	layerOrder := append([]string(nil), c.Layers...)
	known := make(map[string]bool, len(layerOrder))
	for _, l := range layerOrder {
		known[l] = true
	}

	for _, r := range c.Records {
		if r.ClassIndex == nil {
			continue
		}
		if !known[r.LayerName] {
			known[r.LayerName] = true
			layerOrder = append(layerOrder, r.LayerName)
		}
		k := key{r.LayerName, *r.ClassIndex}
		g, ok := groups[k]
		if !ok {
			g = &ClassGroup{Layer: k.layer, Class: k.class}
			if r.Color != nil {
				g.Color = *r.Color
			}
			groups[k] = g
		}
		g.Records = append(g.Records, r)
	}

	out := make([]ClassGroup, 0, len(groups))
	for _, l := range layerOrder {
		for cls := 0; cls < model.NumClasses; cls++ {
			if g, ok := groups[key{l, cls}]; ok {
				out = append(out, *g)
			}
		}
	}
	return out
}

type WeightedPoint struct {
	Lon    float64 `json:"lon"`
	Lat    float64 `json:"lat"`
	Weight float64 `json:"weight"`
	Region string  `json:"region,omitempty"`
	Layer  string  `json:"layer,omitempty"`
}

// AsWeightedPoints maps every record with a value to its area centroid.
// Records without value or geometry are skipped.
func AsWeightedPoints(c model.CompositeCollection) []WeightedPoint {
	out := make([]WeightedPoint, 0, len(c.Records))
	for _, r := range c.Records {
		if !r.HasValue() || r.Geometry == nil {
			continue
		}
		p, ok := Centroid(r.Geometry)
		if !ok {
			continue
		}
		out = append(out, WeightedPoint{
			Lon:    p.Lon(),
			Lat:    p.Lat(),
			Weight: r.Value(),
			Region: r.RegionName,
			Layer:  r.LayerName,
		})
	}
	return out
}

// Centroid is the planar area centroid. Degenerate polygons fall back to the
// center of their bound.
func Centroid(g orb.Geometry) (orb.Point, bool) {
	if g == nil || g.Bound().IsEmpty() {
		return orb.Point{}, false
	}
	p, area := planar.CentroidArea(g)
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon, orb.Ring, orb.Collection:
		if area == 0 {
			p = g.Bound().Center()
		}
	}
	if math.IsNaN(p.X()) || math.IsNaN(p.Y()) {
		return orb.Point{}, false
	}
	return p, true
}

// Filter returns the records keep accepts, in order. The input is untouched.
func Filter(c model.CompositeCollection, keep func(model.FeatureRecord) bool) model.CompositeCollection {
	out := model.CompositeCollection{Layers: append([]string(nil), c.Layers...)}
	for _, r := range c.Records {
		if keep(r) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// Layer extracts one layer's records from the composite.
func Layer(c model.CompositeCollection, name string) (model.LayerCollection, error) {
	found := false
	for _, l := range c.Layers {
		if l == name {
			found = true
			break
		}
	}
	if !found {
		return model.LayerCollection{}, fmt.Errorf("layer %q not in composite", name)
	}
	out := model.LayerCollection{Layer: name, CRS: crs.WGS84}
	for _, r := range c.Records {
		if r.LayerName == name {
			out.Records = append(out.Records, r)
			if r.Period != nil {
				out.HasPeriod = true
			}
		}
	}
	return out, nil
}
