package dataset

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/paulmach/orb/geojson"
)

// DecodeGeoJSON reads a FeatureCollection document as the named table.
//
// The document's "name" member (as written by GDAL) must match table; a
// document without one is accepted when fallbackName matches instead. The
// reference system comes from the legacy "crs" member; a document without it
// is EPSG:4326 per RFC 7946, one with an unreadable member is left
// undetermined.
func DecodeGeoJSON(data []byte, table, fallbackName string) (*Table, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	name := fallbackName
	if v, ok := fc.ExtraMembers["name"].(string); ok && v != "" {
		name = v
	}
	if name != table {
		return nil, fmt.Errorf("table %q not found (document holds %q)", table, name)
	}

	out := &Table{
		Name: name,
		CRS:  crsMember(fc.ExtraMembers["crs"]),
		Rows: make([]Row, 0, len(fc.Features)),
	}
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		attrs := map[string]any(f.Properties)
		if attrs == nil {
			attrs = map[string]any{}
		}
		out.Rows = append(out.Rows, Row{Geometry: f.Geometry, Attributes: attrs})
	}
	return out, nil
}

func crsMember(v any) string {
	if v == nil {
		return "EPSG:4326"
	}
	// round-trip through JSON so both decoded maps and raw messages work
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	var m struct {
		Type       string          `json:"type"`
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return ""
	}
	switch m.Type {
	case "name":
		var p struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(m.Properties, &p); err != nil {
			return ""
		}
		return p.Name
	case "EPSG":
		var p struct {
			Code json.Number `json:"code"`
		}
		if err := json.Unmarshal(m.Properties, &p); err != nil || p.Code == "" {
			return ""
		}
		if _, err := strconv.Atoi(p.Code.String()); err != nil {
			return ""
		}
		return "EPSG:" + p.Code.String()
	default:
		return ""
	}
}
