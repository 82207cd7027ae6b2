package model

import "fmt"

// UnknownLayerError is returned when a layer name is not registered.
type UnknownLayerError struct {
	Name string
}

func (e *UnknownLayerError) Error() string {
	return fmt.Sprintf("unknown layer %q", e.Name)
}

// DataSourceError wraps any failure to read a layer's dataset or table.
type DataSourceError struct {
	Layer  string
	Source string
	Table  string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("layer %q: read %s (table %q): %v", e.Layer, e.Source, e.Table, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// ProjectionError is returned when a geometry's reference system cannot be
// resolved to EPSG:4326.
type ProjectionError struct {
	Layer string
	CRS   string
}

func (e *ProjectionError) Error() string {
	if e.CRS == "" {
		return fmt.Sprintf("layer %q: reference system is undetermined", e.Layer)
	}
	return fmt.Sprintf("layer %q: unsupported reference system %q", e.Layer, e.CRS)
}

// NoTemporalDataError is returned when a time series is requested for a
// layer without a period attribute.
type NoTemporalDataError struct {
	Layer string
}

func (e *NoTemporalDataError) Error() string {
	return fmt.Sprintf("layer %q carries no temporal attribute", e.Layer)
}
