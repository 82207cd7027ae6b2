// Package export writes the composite collection as a downloadable table.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mohammed-shakir/urbansphere/internal/compose"
	"github.com/mohammed-shakir/urbansphere/internal/core/model"
	"github.com/mohammed-shakir/urbansphere/internal/render"
)

var fixedColumns = []string{"layer", "region", "value", "class", "color", "period", "centroid_lon", "centroid_lat"}

// Table flattens c into a header and one row per record. Source attributes
// follow the fixed columns, sorted by name.
func Table(c model.CompositeCollection) ([]string, [][]string) {
	attrSet := map[string]struct{}{}
	for _, r := range c.Records {
		for k := range r.Properties {
			attrSet[k] = struct{}{}
		}
	}
	attrs := make([]string, 0, len(attrSet))
	for k := range attrSet {
		attrs = append(attrs, k)
	}
	sort.Strings(attrs)

	header := append(append([]string(nil), fixedColumns...), attrs...)
	rows := make([][]string, 0, len(c.Records))
	for _, r := range c.Records {
		row := make([]string, 0, len(header))
		row = append(row, r.LayerName, r.RegionName)
		if r.HasValue() {
			row = append(row, formatFloat(r.Value()))
		} else {
			row = append(row, "")
		}
		if r.ClassIndex != nil {
			row = append(row, strconv.Itoa(*r.ClassIndex))
		} else {
			row = append(row, "")
		}
		if r.Color != nil {
			row = append(row, r.Color.String())
		} else {
			row = append(row, "")
		}
		if r.Period != nil {
			row = append(row, *r.Period)
		} else {
			row = append(row, "")
		}
		if p, ok := compose.Centroid(r.Geometry); ok {
			row = append(row, formatFloat(p.Lon()), formatFloat(p.Lat()))
		} else {
			row = append(row, "", "")
		}
		for _, k := range attrs {
			row = append(row, cell(r.Properties[k]))
		}
		rows = append(rows, row)
	}
	return header, rows
}

func WriteCSV(w io.Writer, c model.CompositeCollection) error {
	header, rows := Table(c)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("csv rows: %w", err)
	}
	return nil
}

const sheetName = "data"

func WriteXLSX(w io.Writer, c model.CompositeCollection) error {
	header, rows := Table(c)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	if err := setRow(f, 1, header); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("xlsx panes: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, n int, row []string) error {
	addr, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return fmt.Errorf("xlsx cell: %w", err)
	}
	vals := make([]interface{}, len(row))
	for i, s := range row {
		if v, err := strconv.ParseFloat(s, 64); err == nil && n > 1 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals[i] = v
		} else {
			vals[i] = s
		}
	}
	if err := f.SetSheetRow(sheetName, addr, &vals); err != nil {
		return fmt.Errorf("xlsx row %d: %w", n, err)
	}
	return nil
}

func WriteGeoJSON(w io.Writer, c model.CompositeCollection) error {
	b, err := json.Marshal(render.FeatureCollection(c.Records))
	if err != nil {
		return fmt.Errorf("geojson: %w", err)
	}
	_, err = w.Write(b)
	return err
}

// FileName is the download name for a snapshot taken at now.
func FileName(f Format, now time.Time) string {
	return "filtered_data_" + now.Format("20060102150405") + "." + f.Ext()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatFloat(t)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
