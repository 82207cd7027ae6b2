package layer

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/urbansphere/internal/core/model"
)

type fileSpec struct {
	Name         string    `yaml:"name"`
	Source       string    `yaml:"source"`
	Table        string    `yaml:"table"`
	ValueColumn  string    `yaml:"value_column"`
	RegionColumn string    `yaml:"region_column"`
	PeriodColumn string    `yaml:"period_column"`
	BinEdges     []float64 `yaml:"bin_edges"`
	Colors       [][]int   `yaml:"colors"`
}

type fileDoc struct {
	Layers []fileSpec `yaml:"layers"`
}

// LoadFile reads a registry table from YAML.
//
//	layers:
//	  - name: Water
//	    source: states_india_water.geojson
//	    table: states_india_water
//	    value_column: Safe_drinking_2011 Total
//	    bin_edges: [23, 34, 54, 70, 88, 99]
//	    colors: [[240,249,255,150], ...]
func LoadFile(path string) (*Registry, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read layers file: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Registry, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse layers yaml: %w", err)
	}
	if len(doc.Layers) == 0 {
		return nil, fmt.Errorf("layers file declares no layers")
	}

	specs := make([]model.LayerSpec, 0, len(doc.Layers))
	for i, fs := range doc.Layers {
		s, err := fs.toSpec()
		if err != nil {
			return nil, fmt.Errorf("layer %d (%q): %w", i, fs.Name, err)
		}
		specs = append(specs, s)
	}
	return New(specs...)
}

func (fs fileSpec) toSpec() (model.LayerSpec, error) {
	s := model.LayerSpec{
		Name:         fs.Name,
		Source:       fs.Source,
		Table:        fs.Table,
		ValueColumn:  fs.ValueColumn,
		RegionColumn: fs.RegionColumn,
		PeriodColumn: fs.PeriodColumn,
	}
	if len(fs.BinEdges) != model.NumClasses+1 {
		return s, fmt.Errorf("bin_edges: want %d values, got %d", model.NumClasses+1, len(fs.BinEdges))
	}
	if len(fs.Colors) != model.NumClasses {
		return s, fmt.Errorf("colors: want %d entries, got %d", model.NumClasses, len(fs.Colors))
	}
	copy(s.BinEdges[:], fs.BinEdges)
	for i, c := range fs.Colors {
		if len(c) != 3 && len(c) != 4 {
			return s, fmt.Errorf("colors[%d]: want [r,g,b] or [r,g,b,a], got %d components", i, len(c))
		}
		rgba := model.RGBA{0, 0, 0, 255}
		for j, v := range c {
			if v < 0 || v > 255 {
				return s, fmt.Errorf("colors[%d][%d]: %d out of range 0..255", i, j, v)
			}
			rgba[j] = uint8(v)
		}
		s.Colors[i] = rgba
	}
	return s, nil
}
