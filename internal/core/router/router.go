package router

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/urbansphere/internal/core/model"
)

const (
	maxTopN      = 100
	maxSearchLen = 200
)

// ParseSelection reads the map controls from the query string. Layers may be
// repeated or comma-separated; type defaults to choropleth.
func ParseSelection(r *http.Request) (model.Selection, error) {
	q := r.URL.Query()

	var layers []string
	for _, v := range q["layers"] {
		for p := range strings.SplitSeq(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				layers = append(layers, p)
			}
		}
	}

	mt, err := parseMapType(q.Get("type"))
	if err != nil {
		return model.Selection{}, err
	}

	search := strings.TrimSpace(q.Get("search"))
	if len(search) > maxSearchLen {
		return model.Selection{}, fmt.Errorf("search longer than %d bytes", maxSearchLen)
	}

	return model.Selection{Layers: layers, Search: search, MapType: mt}, nil
}

func parseMapType(s string) (model.MapType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(model.MapChoropleth):
		return model.MapChoropleth, nil
	case string(model.MapHeatmap):
		return model.MapHeatmap, nil
	default:
		return "", fmt.Errorf("unknown map type %q (want choropleth or heatmap)", s)
	}
}

func requiredParam(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", fmt.Errorf("missing required parameter: %s", name)
	}
	return v, nil
}

// intParam parses an optional integer within [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s must be within %d..%d", name, lo, hi)
	}
	return n, nil
}
