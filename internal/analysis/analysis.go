// Package analysis holds the chart and table helpers that sit beside the map:
// ranking, per-region series, search highlight and summary statistics.
package analysis

import (
	"sort"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/urbansphere/internal/core/model"
)

type RegionValue struct {
	Region string  `json:"region"`
	Value  float64 `json:"value"`
}

// TopN ranks records by value, highest first. Records without a value are
// excluded; ties keep source order. n <= 0 yields an empty result.
func TopN(coll model.LayerCollection, n int) []RegionValue {
	if n <= 0 {
		return []RegionValue{}
	}
	out := make([]RegionValue, 0, len(coll.Records))
	for _, r := range coll.Records {
		if r.HasValue() {
			out = append(out, RegionValue{Region: r.RegionName, Value: r.Value()})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

type PeriodValue struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

// TimeSeries returns the values of region ordered by period. Layers without a
// temporal attribute fail with *model.NoTemporalDataError.
func TimeSeries(coll model.LayerCollection, region string) ([]PeriodValue, error) {
	if !coll.HasPeriod {
		return nil, &model.NoTemporalDataError{Layer: coll.Layer}
	}
	out := []PeriodValue{}
	for _, r := range coll.Records {
		if r.RegionName != region || r.Period == nil || !r.HasValue() {
			continue
		}
		out = append(out, PeriodValue{Period: *r.Period, Value: r.Value()})
	}
	sort.SliceStable(out, func(i, j int) bool { return periodLess(out[i].Period, out[j].Period) })
	return out, nil
}

// periodLess orders numeric periods numerically and before any non-numeric
// ones, which are compared as strings.
func periodLess(a, b string) bool {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	switch {
	case errA == nil && errB == nil:
		return fa < fb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

// Regions lists the distinct region names of coll in first-seen order.
func Regions(coll model.LayerCollection) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range coll.Records {
		if r.RegionName == "" || seen[r.RegionName] {
			continue
		}
		seen[r.RegionName] = true
		out = append(out, r.RegionName)
	}
	return out
}
