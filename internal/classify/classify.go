// Package classify buckets layer values into color classes.
package classify

import (
	"github.com/mohammed-shakir/urbansphere/internal/core/model"
	"github.com/mohammed-shakir/urbansphere/internal/core/observability"
)

// Index returns i such that edges[i] <= v < edges[i+1]. Values below the
// first edge, at or above the last edge, or NaN report false.
func Index(v float64, edges []float64) (int, bool) {
	if len(edges) < 2 || !(v >= edges[0]) || v >= edges[len(edges)-1] {
		return 0, false
	}
	for i := 1; i < len(edges); i++ {
		if v < edges[i] {
			return i - 1, true
		}
	}
	return 0, false
}

// Classify returns a copy of coll with ClassIndex and Color set on every
// record whose value falls inside the layer's bins. Order and count are kept;
// coll is not modified.
func Classify(coll model.LayerCollection, spec model.LayerSpec) model.LayerCollection {
	out := coll
	out.Records = make([]model.FeatureRecord, len(coll.Records))

	var classified, missing, outOfRange int
	for i, rec := range coll.Records {
		rec.ClassIndex = nil
		rec.Color = nil
		if !rec.HasValue() {
			missing++
			out.Records[i] = rec
			continue
		}
		idx, ok := Index(rec.Value(), spec.BinEdges[:])
		if !ok {
			outOfRange++
			out.Records[i] = rec
			continue
		}
		c := spec.Colors[idx]
		rec.ClassIndex = model.Int(idx)
		rec.Color = &c
		classified++
		out.Records[i] = rec
	}

	observability.AddClassified(spec.Name, "classified", classified)
	observability.AddClassified(spec.Name, "missing", missing)
	observability.AddClassified(spec.Name, "out_of_range", outOfRange)
	return out
}

// Counts tallies classified records per class.
func Counts(coll model.LayerCollection) [model.NumClasses]int {
	var n [model.NumClasses]int
	for _, r := range coll.Records {
		if r.ClassIndex != nil && *r.ClassIndex >= 0 && *r.ClassIndex < model.NumClasses {
			n[*r.ClassIndex]++
		}
	}
	return n
}
