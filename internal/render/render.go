// Package render turns a recomputation result into deck.gl JSON descriptors,
// legends and GeoJSON documents.
package render

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/urbansphere/internal/compose"
	"github.com/mohammed-shakir/urbansphere/internal/core/model"
)

const (
	MapStyle = "mapbox://styles/mapbox/light-v10"

	CenterLatitude  = 20.5937
	CenterLongitude = 78.9629
	DefaultZoom     = 3

	HeatRadius    = 200
	HeatIntensity = 1
	HeatThreshold = 0.1

	choroplethOpacity = 0.6
)

var lineColor = model.RGBA{0, 0, 0, 50}

type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
}

type Tooltip struct {
	Text string `json:"text"`
}

// Layer is one deck.gl layer in the JSON converter's shape.
type Layer struct {
	Type string `json:"@@type"`
	ID   string `json:"id"`
	Data any    `json:"data"`

	GetFillColor *[3]uint8   `json:"getFillColor,omitempty"`
	GetLineColor *model.RGBA `json:"getLineColor,omitempty"`
	Opacity      float64     `json:"opacity,omitempty"`
	Pickable     bool        `json:"pickable,omitempty"`

	GetPosition string  `json:"getPosition,omitempty"`
	GetWeight   string  `json:"getWeight,omitempty"`
	Radius      float64 `json:"radius,omitempty"`
	Intensity   float64 `json:"intensity,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

type Deck struct {
	MapStyle         string    `json:"mapStyle"`
	InitialViewState ViewState `json:"initialViewState"`
	Layers           []Layer   `json:"layers"`
	Tooltip          *Tooltip  `json:"tooltip,omitempty"`
}

func newDeck() Deck {
	return Deck{
		MapStyle: MapStyle,
		InitialViewState: ViewState{
			Latitude:  CenterLatitude,
			Longitude: CenterLongitude,
			Zoom:      DefaultZoom,
		},
		Layers: []Layer{},
	}
}

// Choropleth emits one GeoJsonLayer per (layer, class) group, in selection
// then class order.
func Choropleth(c model.CompositeCollection) Deck {
	d := newDeck()
	d.Tooltip = &Tooltip{Text: "{name}: {value}"}
	for _, g := range compose.GroupByLayerAndClass(c) {
		fill := g.Color.RGB()
		line := lineColor
		d.Layers = append(d.Layers, Layer{
			Type:         "GeoJsonLayer",
			ID:           fmt.Sprintf("%s-class-%d", g.Layer, g.Class),
			Data:         FeatureCollection(g.Records),
			GetFillColor: &fill,
			GetLineColor: &line,
			Opacity:      choroplethOpacity,
			Pickable:     true,
		})
	}
	return d
}

// Heatmap emits a single HeatmapLayer over the weighted centroids.
func Heatmap(c model.CompositeCollection) Deck {
	d := newDeck()
	d.Layers = append(d.Layers, Layer{
		Type:        "HeatmapLayer",
		ID:          "heatmap",
		Data:        compose.AsWeightedPoints(c),
		GetPosition: "@@=[lon, lat]",
		GetWeight:   "@@=weight",
		Radius:      HeatRadius,
		Intensity:   HeatIntensity,
		Threshold:   HeatThreshold,
	})
	return d
}

// ForMapType picks the descriptor for t; anything but heatmap is a choropleth.
func ForMapType(c model.CompositeCollection, t model.MapType) Deck {
	if t == model.MapHeatmap {
		return Heatmap(c)
	}
	return Choropleth(c)
}

type LegendEntry struct {
	Class int        `json:"class"`
	Label string     `json:"label"`
	Color model.RGBA `json:"color"`
}

// Legend describes the classes of one layer from its own bin edges.
func Legend(spec model.LayerSpec) []LegendEntry {
	out := make([]LegendEntry, model.NumClasses)
	for i := range out {
		out[i] = LegendEntry{
			Class: i,
			Label: formatEdge(spec.BinEdges[i]) + " - " + formatEdge(spec.BinEdges[i+1]),
			Color: spec.Colors[i],
		}
	}
	return out
}

func formatEdge(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FeatureCollection renders records as GeoJSON. Properties carry the tooltip
// fields; records without geometry are kept with a null geometry.
func FeatureCollection(recs []model.FeatureRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(recs))
	for _, r := range recs {
		f := &geojson.Feature{Type: "Feature", Geometry: r.Geometry, Properties: geojson.Properties{}}
		f.Properties["name"] = r.RegionName
		f.Properties["layer"] = r.LayerName
		if r.HasValue() {
			f.Properties["value"] = r.Value()
		} else {
			f.Properties["value"] = nil
		}
		if r.ClassIndex != nil {
			f.Properties["class"] = *r.ClassIndex
		}
		if r.Color != nil {
			f.Properties["color"] = *r.Color
		}
		if r.Period != nil {
			f.Properties["period"] = *r.Period
		}
		fc.Append(f)
	}
	return fc
}
