// Package layer holds the static registry of thematic layers.
package layer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/urbansphere/internal/core/model"
)

type Registry struct {
	order []string
	specs map[string]model.LayerSpec
}

// New validates specs and builds an immutable registry. Registration order
// is preserved for listings.
func New(specs ...model.LayerSpec) (*Registry, error) {
	r := &Registry{
		order: make([]string, 0, len(specs)),
		specs: make(map[string]model.LayerSpec, len(specs)),
	}
	for i, s := range specs {
		s = s.WithDefaults()
		if err := Validate(s); err != nil {
			return nil, fmt.Errorf("layer %d (%q): %w", i, s.Name, err)
		}
		if _, dup := r.specs[s.Name]; dup {
			return nil, fmt.Errorf("layer %d: duplicate name %q", i, s.Name)
		}
		r.specs[s.Name] = s
		r.order = append(r.order, s.Name)
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (model.LayerSpec, error) {
	s, ok := r.specs[name]
	if !ok {
		return model.LayerSpec{}, &model.UnknownLayerError{Name: name}
	}
	return s, nil
}

// Names returns the registered layer names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Specs returns every spec in registration order.
func (r *Registry) Specs() []model.LayerSpec {
	out := make([]model.LayerSpec, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.specs[n])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }

func Validate(s model.LayerSpec) error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(s.Source) == "" {
		return errors.New("source is required")
	}
	if strings.TrimSpace(s.Table) == "" {
		return errors.New("table is required")
	}
	if strings.TrimSpace(s.ValueColumn) == "" {
		return errors.New("value column is required")
	}
	for i := 1; i < len(s.BinEdges); i++ {
		if !(s.BinEdges[i] > s.BinEdges[i-1]) {
			return fmt.Errorf("bin edges must be strictly increasing (edge %d=%v, edge %d=%v)",
				i-1, s.BinEdges[i-1], i, s.BinEdges[i])
		}
	}
	return nil
}
