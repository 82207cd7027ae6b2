package export

import (
	"strconv"
	"strings"
)

type Format int

const (
	FormatCSV Format = iota
	FormatXLSX
	FormatGeoJSON
)

func (f Format) Ext() string {
	switch f {
	case FormatXLSX:
		return "xlsx"
	case FormatGeoJSON:
		return "geojson"
	default:
		return "csv"
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatGeoJSON:
		return "application/geo+json"
	default:
		return "text/csv; charset=utf-8"
	}
}

func byName(s string) (Format, bool) {
	switch {
	case s == "csv" || strings.HasPrefix(s, "text/csv"):
		return FormatCSV, true
	case s == "xlsx" || s == "excel" || strings.Contains(s, "spreadsheetml"):
		return FormatXLSX, true
	case s == "geojson" || s == "json" || strings.Contains(s, "geo+json") || s == "application/json":
		return FormatGeoJSON, true
	}
	return FormatCSV, false
}

// Negotiate picks the export format. An explicit format parameter wins,
// then the highest-q recognised Accept entry, then CSV.
func Negotiate(format, accept string) Format {
	if f, ok := byName(strings.ToLower(strings.TrimSpace(format))); ok {
		return f
	}

	bestQ := -1.0
	best := FormatCSV
	for part := range strings.SplitSeq(strings.ToLower(accept), ",") {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		mt := token
		params := ""
		if i := strings.Index(token, ";"); i >= 0 {
			mt = strings.TrimSpace(token[:i])
			params = token[i+1:]
		}
		q := 1.0
		for p := range strings.SplitSeq(params, ";") {
			p = strings.TrimSpace(p)
			if after, ok := strings.CutPrefix(p, "q="); ok {
				if v, err := strconv.ParseFloat(after, 64); err == nil {
					q = v
				}
			}
		}
		cand, ok := byName(mt)
		if mt == "*/*" {
			cand, ok = FormatCSV, true
		}
		if ok && q > bestQ {
			bestQ = q
			best = cand
		}
	}
	return best
}
