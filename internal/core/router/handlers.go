// Package router exposes the dashboard operations over HTTP.
package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/urbansphere/internal/analysis"
	"github.com/mohammed-shakir/urbansphere/internal/chart"
	"github.com/mohammed-shakir/urbansphere/internal/compose"
	"github.com/mohammed-shakir/urbansphere/internal/core/config"
	"github.com/mohammed-shakir/urbansphere/internal/core/model"
	"github.com/mohammed-shakir/urbansphere/internal/export"
	"github.com/mohammed-shakir/urbansphere/internal/pipeline"
	"github.com/mohammed-shakir/urbansphere/internal/render"
)

const maxH3Res = 15

var errNoLayers = errors.New("missing required parameter: layers")

// Recomputer is the part of the pipeline the handlers drive.
type Recomputer interface {
	Recompute(ctx context.Context, sel model.Selection) (pipeline.Result, error)
	Compare(ctx context.Context, a, b, search string) (pipeline.Comparison, error)
}

// Catalog lists registered layers.
type Catalog interface {
	Lookup(name string) (model.LayerSpec, error)
	Specs() []model.LayerSpec
}

type Handlers struct {
	pipe   Recomputer
	reg    Catalog
	cfg    config.Config
	logger *slog.Logger
	now    func() time.Time
}

func New(pipe Recomputer, reg Catalog, cfg config.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{pipe: pipe, reg: reg, cfg: cfg, logger: logger, now: time.Now}
}

// Mount registers every dashboard route on r.
func (h *Handlers) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/layers", h.layers)
		r.Get("/map", h.mapView)
		r.Get("/highlight", h.highlight)
		r.Get("/compare", h.compare)
		r.Get("/top", h.top)
		r.Get("/timeseries", h.timeSeries)
		r.Get("/summary", h.summary)
		r.Get("/heatcells", h.heatCells)
		r.Get("/export", h.export)
	})
	r.Route("/charts", func(r chi.Router) {
		r.Get("/top.png", h.topChart)
		r.Get("/timeseries.png", h.timeSeriesChart)
		r.Get("/legend.png", h.legendChart)
	})
}

type layerInfo struct {
	Name        string               `json:"name"`
	Table       string               `json:"table"`
	ValueColumn string               `json:"valueColumn"`
	BinEdges    []float64            `json:"binEdges"`
	Legend      []render.LegendEntry `json:"legend"`
}

type failure struct {
	Layer string `json:"layer"`
	Error string `json:"error"`
}

type mapResponse struct {
	CycleID   string                          `json:"cycleId"`
	Layers    []string                        `json:"layers"`
	MapType   model.MapType                   `json:"mapType"`
	Deck      *render.Deck                    `json:"deck,omitempty"`
	Legends   map[string][]render.LegendEntry `json:"legends,omitempty"`
	Search    string                          `json:"search,omitempty"`
	Highlight *geojson.FeatureCollection      `json:"highlight,omitempty"`
	Failures  []failure                       `json:"failures,omitempty"`
	Message   string                          `json:"message,omitempty"`
}

func (h *Handlers) layers(w http.ResponseWriter, r *http.Request) {
	specs := h.reg.Specs()
	out := make([]layerInfo, 0, len(specs))
	for _, s := range specs {
		out = append(out, layerInfo{
			Name:        s.Name,
			Table:       s.Table,
			ValueColumn: s.ValueColumn,
			BinEdges:    s.BinEdges[:],
			Legend:      render.Legend(s),
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *Handlers) mapView(w http.ResponseWriter, r *http.Request) {
	sel, err := ParseSelection(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, ok := h.recompute(w, r, sel)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, mapBody(res))
}

func mapBody(res pipeline.Result) mapResponse {
	out := mapResponse{
		CycleID:  res.CycleID,
		Layers:   res.Composite.Layers,
		MapType:  res.Selection.MapType,
		Failures: failures(res.Failures),
		Message:  res.Message,
	}
	if out.Layers == nil {
		out.Layers = []string{}
	}
	if res.Empty {
		return out
	}
	deck := render.ForMapType(res.Composite, res.Selection.MapType)
	out.Deck = &deck
	out.Legends = make(map[string][]render.LegendEntry, len(res.Specs))
	for _, s := range res.Specs {
		out.Legends[s.Name] = render.Legend(s)
	}
	if res.Searching {
		out.Search = res.Selection.Search
		out.Highlight = render.FeatureCollection(res.Highlight.Records)
	}
	return out
}

func failures(in []pipeline.LayerFailure) []failure {
	if len(in) == 0 {
		return nil
	}
	out := make([]failure, 0, len(in))
	for _, f := range in {
		out = append(out, failure{Layer: f.Layer, Error: f.Err.Error()})
	}
	return out
}

func (h *Handlers) highlight(w http.ResponseWriter, r *http.Request) {
	sel, err := ParseSelection(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, ok := h.recompute(w, r, sel)
	if !ok {
		return
	}
	recs := res.Composite.Records
	if res.Searching {
		recs = res.Highlight.Records
	}
	writeBodyJSON(w, r, render.FeatureCollection(recs))
}

type compareResponse struct {
	Left  mapResponse `json:"left"`
	Right mapResponse `json:"right"`
}

func (h *Handlers) compare(w http.ResponseWriter, r *http.Request) {
	sel, err := ParseSelection(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(sel.Layers) != 2 {
		writeError(w, http.StatusBadRequest, pipeline.ErrCompareArity.Error())
		return
	}
	cmp, err := h.pipe.Compare(r.Context(), sel.Layers[0], sel.Layers[1], sel.Search)
	if err != nil {
		h.pipelineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, compareResponse{Left: mapBody(cmp.Left), Right: mapBody(cmp.Right)})
}

type topResponse struct {
	Layer    string                 `json:"layer"`
	N        int                    `json:"n"`
	Rows     []analysis.RegionValue `json:"rows"`
	Failures []failure              `json:"failures,omitempty"`
	Message  string                 `json:"message,omitempty"`
}

func (h *Handlers) top(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n", h.cfg.TopNDefault, 0, maxTopN)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ld, ok := h.loadOne(w, r)
	if !ok {
		return
	}
	rows := analysis.TopN(ld.coll, n)
	if rows == nil {
		rows = []analysis.RegionValue{}
	}
	writeJSON(w, r, http.StatusOK, topResponse{
		Layer: ld.spec.Name, N: n, Rows: rows, Failures: ld.failures, Message: ld.message,
	})
}

type seriesResponse struct {
	Layer    string                 `json:"layer"`
	Region   string                 `json:"region"`
	Points   []analysis.PeriodValue `json:"points"`
	Failures []failure              `json:"failures,omitempty"`
	Message  string                 `json:"message,omitempty"`
}

func (h *Handlers) timeSeries(w http.ResponseWriter, r *http.Request) {
	region, err := requiredParam(r, "region")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ld, ok := h.loadOne(w, r)
	if !ok {
		return
	}
	if ld.failed() {
		writeJSON(w, r, http.StatusOK, seriesResponse{
			Layer: ld.spec.Name, Region: region, Points: []analysis.PeriodValue{},
			Failures: ld.failures, Message: ld.message,
		})
		return
	}
	pts, err := analysis.TimeSeries(ld.coll, region)
	var nt *model.NoTemporalDataError
	if errors.As(err, &nt) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, r, http.StatusOK, seriesResponse{Layer: ld.spec.Name, Region: region, Points: pts})
}

type summaryResponse struct {
	analysis.Summary
	Failures []failure `json:"failures,omitempty"`
	Message  string    `json:"message,omitempty"`
}

func (h *Handlers) summary(w http.ResponseWriter, r *http.Request) {
	ld, ok := h.loadOne(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, summaryResponse{
		Summary: analysis.Summarize(ld.coll), Failures: ld.failures, Message: ld.message,
	})
}

type heatResponse struct {
	Resolution int                `json:"resolution"`
	Cells      []compose.HeatCell `json:"cells"`
}

func (h *Handlers) heatCells(w http.ResponseWriter, r *http.Request) {
	res, err := intParam(r, "res", h.cfg.HeatH3Res, 0, maxH3Res)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sel, err := ParseSelection(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, ok := h.recompute(w, r, sel)
	if !ok {
		return
	}
	cells, err := compose.HeatCells(out.Composite, res)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if cells == nil {
		cells = []compose.HeatCell{}
	}
	writeJSON(w, r, http.StatusOK, heatResponse{Resolution: res, Cells: cells})
}

func (h *Handlers) export(w http.ResponseWriter, r *http.Request) {
	sel, err := ParseSelection(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(pipeline.Dedupe(sel.Layers)) == 0 {
		writeError(w, http.StatusBadRequest, errNoLayers.Error())
		return
	}
	res, ok := h.recompute(w, r, sel)
	if !ok {
		return
	}
	data := res.Composite
	if res.Searching {
		data = res.Highlight
	}

	f := export.Negotiate(r.URL.Query().Get("format"), r.Header.Get("Accept"))
	var buf bytes.Buffer
	switch f {
	case export.FormatXLSX:
		err = export.WriteXLSX(&buf, data)
	case export.FormatGeoJSON:
		err = export.WriteGeoJSON(&buf, data)
	default:
		err = export.WriteCSV(&buf, data)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "export failed", "format", f.Ext(), "err", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename=%q`, export.FileName(f, h.now())))
	writeBody(w, r, http.StatusOK, f.ContentType(), buf.Bytes())
}

func (h *Handlers) topChart(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n", h.cfg.TopNDefault, 1, maxTopN)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ld, ok := h.loadOne(w, r)
	if !ok {
		return
	}
	h.png(w, r, func(buf *bytes.Buffer) error {
		return chart.Bar(buf, fmt.Sprintf("Top %d regions: %s", n, ld.spec.Name), ld.spec.ValueColumn, analysis.TopN(ld.coll, n))
	})
}

func (h *Handlers) timeSeriesChart(w http.ResponseWriter, r *http.Request) {
	region, err := requiredParam(r, "region")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ld, ok := h.loadOne(w, r)
	if !ok {
		return
	}
	pts, err := analysis.TimeSeries(ld.coll, region)
	var nt *model.NoTemporalDataError
	if ld.failed() || errors.As(err, &nt) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.png(w, r, func(buf *bytes.Buffer) error {
		return chart.Line(buf, region+": "+ld.spec.Name, ld.spec.ValueColumn, pts)
	})
}

func (h *Handlers) legendChart(w http.ResponseWriter, r *http.Request) {
	name, err := requiredParam(r, "layer")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	spec, err := h.reg.Lookup(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.png(w, r, func(buf *bytes.Buffer) error {
		return chart.Legend(buf, spec.Name, render.Legend(spec))
	})
}

func (h *Handlers) png(w http.ResponseWriter, r *http.Request, draw func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	err := draw(&buf)
	switch {
	case errors.Is(err, chart.ErrNoData):
		w.WriteHeader(http.StatusNoContent)
	case err != nil:
		h.logger.ErrorContext(r.Context(), "chart render failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "chart render failed")
	default:
		writeBody(w, r, http.StatusOK, "image/png", buf.Bytes())
	}
}

// singleLayer is one recomputed layer. When the layer could not be read coll
// is empty and failures with the placeholder message say why.
type singleLayer struct {
	spec     model.LayerSpec
	coll     model.LayerCollection
	failures []failure
	message  string
}

func (l singleLayer) failed() bool { return len(l.failures) > 0 }

// loadOne recomputes the single layer named by the layer parameter. ok is
// false once an error response has been written.
func (h *Handlers) loadOne(w http.ResponseWriter, r *http.Request) (singleLayer, bool) {
	name, err := requiredParam(r, "layer")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return singleLayer{}, false
	}
	spec, err := h.reg.Lookup(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return singleLayer{}, false
	}
	res, ok := h.recompute(w, r, model.Selection{Layers: []string{name}, MapType: model.MapChoropleth})
	if !ok {
		return singleLayer{}, false
	}
	out := singleLayer{spec: spec}
	coll, found := res.Layer(name)
	if !found {
		out.coll = model.LayerCollection{Layer: name}
		out.failures = failures(res.Failures)
		out.message = res.Message
		return out, true
	}
	out.coll = coll
	return out, true
}

func (h *Handlers) recompute(w http.ResponseWriter, r *http.Request, sel model.Selection) (pipeline.Result, bool) {
	res, err := h.pipe.Recompute(r.Context(), sel)
	if err != nil {
		h.pipelineError(w, r, err)
		return pipeline.Result{}, false
	}
	return res, true
}

func (h *Handlers) pipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *model.ProjectionError
	switch {
	case errors.Is(err, pipeline.ErrCompareArity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &pe):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.WarnContext(r.Context(), "recompute aborted", "err", err)
		writeError(w, http.StatusServiceUnavailable, "request aborted")
	default:
		h.logger.ErrorContext(r.Context(), "recompute failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeBodyJSON(w http.ResponseWriter, r *http.Request, fc *geojson.FeatureCollection) {
	b, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode response: "+err.Error())
		return
	}
	writeBody(w, r, http.StatusOK, "application/geo+json", b)
}
