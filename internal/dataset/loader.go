package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/urbansphere/internal/core/model"
	"github.com/mohammed-shakir/urbansphere/internal/core/observability"
)

// Loader turns a LayerSpec into a LayerCollection. It re-reads the source
// on every call.
type Loader struct {
	src    Source
	logger *slog.Logger
}

func NewLoader(src Source, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{src: src, logger: logger}
}

func (l *Loader) Load(ctx context.Context, spec model.LayerSpec) (model.LayerCollection, error) {
	start := time.Now()
	spec = spec.WithDefaults()

	tbl, err := l.src.Fetch(ctx, spec.Source, spec.Table)
	if err == nil && tbl == nil {
		err = fmt.Errorf("driver returned no table")
	}
	if err != nil {
		observability.ObserveLayerLoad(spec.Name, "error", time.Since(start).Seconds())
		return model.LayerCollection{}, &model.DataSourceError{
			Layer: spec.Name, Source: spec.Source, Table: spec.Table, Err: err,
		}
	}

	out := model.LayerCollection{
		Layer:   spec.Name,
		CRS:     tbl.CRS,
		Records: make([]model.FeatureRecord, 0, len(tbl.Rows)),
	}
	missing := 0
	for _, row := range tbl.Rows {
		rec := model.FeatureRecord{
			LayerName:  spec.Name,
			Geometry:   row.Geometry,
			RegionName: attrString(row.Attributes[spec.RegionColumn]),
			Properties: row.Attributes,
		}
		if v, ok := ParseNumeric(row.Attributes[spec.ValueColumn]); ok {
			rec.RawValue = model.Float(v)
		} else {
			missing++
		}
		if p, ok := row.Attributes[spec.PeriodColumn]; ok && p != nil {
			s := attrString(p)
			rec.Period = &s
			out.HasPeriod = true
		}
		out.Records = append(out.Records, rec)
	}

	observability.ObserveLayerLoad(spec.Name, "ok", time.Since(start).Seconds())
	l.logger.DebugContext(ctx, "layer loaded",
		"layer", spec.Name,
		"source", spec.Source,
		"table", spec.Table,
		"crs", tbl.CRS,
		"records", len(out.Records),
		"missing_values", missing)
	return out, nil
}

var groupedNumber = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// ParseNumeric coerces an attribute value to a finite float. Anything that
// is not a number or a numeric string reports false.
func ParseNumeric(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case nil, bool:
		return 0, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		p, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case []byte:
		return ParseNumeric(string(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if groupedNumber.MatchString(s) {
			s = strings.ReplaceAll(s, ",", "")
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func attrString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
