package model

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestLayerSpec_WithDefaults(t *testing.T) {
	s := LayerSpec{Name: "Water"}.WithDefaults()
	if s.RegionColumn != "st_nm" || s.PeriodColumn != "year" {
		t.Fatalf("defaults not applied: %+v", s)
	}

	s = LayerSpec{Name: "Water", RegionColumn: "state", PeriodColumn: "fy"}.WithDefaults()
	if s.RegionColumn != "state" || s.PeriodColumn != "fy" {
		t.Fatalf("explicit columns overwritten: %+v", s)
	}
}

func TestRGBA_Formats(t *testing.T) {
	c := RGBA{255, 247, 236, 150}
	if got := c.String(); got != "255,247,236,150" {
		t.Fatalf("String=%q", got)
	}
	if got := c.RGB(); got != [3]uint8{255, 247, 236} {
		t.Fatalf("RGB=%v", got)
	}
}

func TestDataSourceError_Unwraps(t *testing.T) {
	err := fmt.Errorf("load: %w", &DataSourceError{Layer: "Water", Source: "x.geojson", Table: "t", Err: fs.ErrNotExist})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected errors.Is to see fs.ErrNotExist through %v", err)
	}
	var dse *DataSourceError
	if !errors.As(err, &dse) || dse.Layer != "Water" {
		t.Fatalf("errors.As failed: %v", err)
	}
}

func TestProjectionError_Messages(t *testing.T) {
	if msg := (&ProjectionError{Layer: "A"}).Error(); msg != `layer "A": reference system is undetermined` {
		t.Fatalf("msg=%q", msg)
	}
	if msg := (&ProjectionError{Layer: "A", CRS: "EPSG:32643"}).Error(); msg != `layer "A": unsupported reference system "EPSG:32643"` {
		t.Fatalf("msg=%q", msg)
	}
}
