package analysis

import (
	"github.com/montanaflynn/stats"

	"github.com/mohammed-shakir/urbansphere/internal/classify"
	"github.com/mohammed-shakir/urbansphere/internal/core/model"
)

// Summary describes the value distribution of one layer. Quartiles use the
// nearest-rank rule and stay zero when the sample is too small for them.
type Summary struct {
	Layer        string                `json:"layer"`
	Count        int                   `json:"count"`
	Missing      int                   `json:"missing"`
	Min          float64               `json:"min"`
	Max          float64               `json:"max"`
	Mean         float64               `json:"mean"`
	Median       float64               `json:"median"`
	P25          float64               `json:"p25"`
	P75          float64               `json:"p75"`
	StdDev       float64               `json:"stddev"`
	Classes      [model.NumClasses]int `json:"classes"`
	Unclassified int                   `json:"unclassified"`
}

func Summarize(coll model.LayerCollection) Summary {
	s := Summary{Layer: coll.Layer, Classes: classify.Counts(coll)}

	data := make(stats.Float64Data, 0, len(coll.Records))
	for _, r := range coll.Records {
		if !r.HasValue() {
			s.Missing++
			continue
		}
		data = append(data, r.Value())
		if r.ClassIndex == nil {
			s.Unclassified++
		}
	}
	s.Count = len(data)
	if s.Count == 0 {
		return s
	}

	s.Min, _ = stats.Min(data)
	s.Max, _ = stats.Max(data)
	s.Mean, _ = stats.Mean(data)
	s.Median, _ = stats.Median(data)
	s.StdDev, _ = stats.StandardDeviation(data)
	if q, err := stats.Percentile(data, 25); err == nil {
		s.P25 = q
	}
	if q, err := stats.Percentile(data, 75); err == nil {
		s.P75 = q
	}
	return s
}
