package compose

import (
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/urbansphere/internal/core/model"
)

// HeatCell aggregates weighted points falling into one H3 cell.
type HeatCell struct {
	Cell   string  `json:"cell"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Weight float64 `json:"weight"`
	Count  int     `json:"count"`
}

// HeatCells bins the weighted points of c into H3 cells at res, summing
// weights. Cells are sorted by id for determinism.
func HeatCells(c model.CompositeCollection, res int) ([]HeatCell, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}

	byCell := map[h3.Cell]*HeatCell{}
	for _, p := range AsWeightedPoints(c) {
		cell, err := h3.LatLngToCell(h3.LatLng{Lat: p.Lat, Lng: p.Lon}, res)
		if err != nil {
			return nil, fmt.Errorf("h3 cell for %s: %w", p.Region, err)
		}
		hc, ok := byCell[cell]
		if !ok {
			center, err := h3.CellToLatLng(cell)
			if err != nil {
				return nil, fmt.Errorf("h3 cell center: %w", err)
			}
			hc = &HeatCell{Cell: cell.String(), Lat: center.Lat, Lon: center.Lng}
			byCell[cell] = hc
		}
		hc.Weight += p.Weight
		hc.Count++
	}

	out := make([]HeatCell, 0, len(byCell))
	for _, hc := range byCell {
		out = append(out, *hc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cell < out[j].Cell })
	return out, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
