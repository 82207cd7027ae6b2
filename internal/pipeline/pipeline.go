// Package pipeline runs one recomputation: look up the selected layers, load
// and classify each, then compose them. Nothing is kept between calls.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/urbansphere/internal/analysis"
	"github.com/mohammed-shakir/urbansphere/internal/classify"
	"github.com/mohammed-shakir/urbansphere/internal/compose"
	"github.com/mohammed-shakir/urbansphere/internal/core/model"
	"github.com/mohammed-shakir/urbansphere/internal/core/observability"
	"github.com/mohammed-shakir/urbansphere/internal/logger"
)

// Placeholder is shown instead of a map when nothing could be rendered.
const Placeholder = "Select layers from the sidebar to display them on the map."

var ErrCompareArity = errors.New("comparison needs exactly two distinct layers")

type Registry interface {
	Lookup(name string) (model.LayerSpec, error)
}

type Loader interface {
	Load(ctx context.Context, spec model.LayerSpec) (model.LayerCollection, error)
}

type LayerFailure struct {
	Layer string
	Err   error
}

type Result struct {
	CycleID   string
	Selection model.Selection
	Specs     []model.LayerSpec
	Layers    []model.LayerCollection
	Composite model.CompositeCollection
	// Highlight holds the records matching Selection.Search; Searching is
	// false when no search text was given.
	Highlight model.CompositeCollection
	Searching bool
	Failures  []LayerFailure
	Empty     bool
	Message   string
}

// Spec returns the spec of a loaded layer.
func (r Result) Spec(name string) (model.LayerSpec, bool) {
	for _, s := range r.Specs {
		if s.Name == name {
			return s, true
		}
	}
	return model.LayerSpec{}, false
}

// Layer returns the classified collection of a loaded layer.
func (r Result) Layer(name string) (model.LayerCollection, bool) {
	for _, l := range r.Layers {
		if l.Layer == name {
			return l, true
		}
	}
	return model.LayerCollection{}, false
}

type Pipeline struct {
	reg    Registry
	loader Loader
	logger *slog.Logger
}

func New(reg Registry, loader Loader, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{reg: reg, loader: loader, logger: log}
}

// Recompute builds a fresh Result for sel. Unknown or unreadable layers are
// reported in Failures and skipped; a projection failure aborts the cycle.
func (p *Pipeline) Recompute(ctx context.Context, sel model.Selection) (Result, error) {
	start := time.Now()
	res := Result{CycleID: uuid.NewString(), Selection: sel}
	ctx = logger.WithCycle(ctx, res.CycleID)

	for _, name := range Dedupe(sel.Layers) {
		lctx := logger.WithLayer(ctx, name)
		spec, err := p.reg.Lookup(name)
		if err != nil {
			res.Failures = append(res.Failures, LayerFailure{Layer: name, Err: err})
			p.logger.WarnContext(lctx, "layer lookup failed", "err", err)
			continue
		}
		coll, err := p.loader.Load(lctx, spec)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				observability.ObserveRecompute("canceled", time.Since(start).Seconds())
				return Result{}, cerr
			}
			res.Failures = append(res.Failures, LayerFailure{Layer: name, Err: err})
			p.logger.WarnContext(lctx, "layer load failed", "err", err)
			continue
		}
		res.Specs = append(res.Specs, spec)
		res.Layers = append(res.Layers, classify.Classify(coll, spec))
	}

	comp, err := compose.Compose(res.Layers...)
	if err != nil {
		observability.ObserveRecompute("projection_error", time.Since(start).Seconds())
		p.logger.ErrorContext(ctx, "composition failed", "err", err)
		return Result{}, err
	}
	res.Composite = comp
	res.Highlight, res.Searching = analysis.Search(comp, sel.Search)

	if len(res.Layers) == 0 {
		res.Empty = true
		res.Message = Placeholder
	}

	outcome := "ok"
	switch {
	case res.Empty:
		outcome = "empty"
	case len(res.Failures) > 0:
		outcome = "partial"
	}
	observability.ObserveRecompute(outcome, time.Since(start).Seconds())
	p.logger.DebugContext(ctx, "recomputed",
		"layers", len(res.Layers),
		"failures", len(res.Failures),
		"records", comp.Len(),
		"highlighted", res.Highlight.Len(),
		"outcome", outcome)
	return res, nil
}

// Comparison is two independently computed single-layer results.
type Comparison struct {
	Left  Result
	Right Result
}

// Compare recomputes a and b separately so neither view borrows values from
// the other.
func (p *Pipeline) Compare(ctx context.Context, a, b, search string) (Comparison, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" || a == b {
		return Comparison{}, ErrCompareArity
	}
	left, err := p.Recompute(ctx, model.Selection{Layers: []string{a}, Search: search, MapType: model.MapChoropleth})
	if err != nil {
		return Comparison{}, err
	}
	right, err := p.Recompute(ctx, model.Selection{Layers: []string{b}, Search: search, MapType: model.MapChoropleth})
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{Left: left, Right: right}, nil
}

// Dedupe trims names, drops blanks and keeps the first of any repeats.
func Dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
