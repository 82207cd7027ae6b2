package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/urbansphere/internal/core/model"
	"github.com/mohammed-shakir/urbansphere/internal/layer"
)

type fakeLoader struct {
	colls map[string]model.LayerCollection
	fail  map[string]error
	calls []string
}

func (f *fakeLoader) Load(_ context.Context, spec model.LayerSpec) (model.LayerCollection, error) {
	f.calls = append(f.calls, spec.Name)
	if err := f.fail[spec.Name]; err != nil {
		return model.LayerCollection{}, &model.DataSourceError{Layer: spec.Name, Source: spec.Source, Table: spec.Table, Err: err}
	}
	c, ok := f.colls[spec.Name]
	if !ok {
		return model.LayerCollection{Layer: spec.Name, CRS: "EPSG:4326"}, nil
	}
	// hand out a fresh copy every time
	c.Records = append([]model.FeatureRecord(nil), c.Records...)
	return c, nil
}

func pt(x, y float64) orb.Geometry { return orb.Point{x, y} }

func newFixture() (*Pipeline, *fakeLoader) {
	fl := &fakeLoader{
		colls: map[string]model.LayerCollection{
			"Air Quality": {Layer: "Air Quality", CRS: "EPSG:4326", Records: []model.FeatureRecord{
				{LayerName: "Air Quality", RegionName: "Maharashtra", RawValue: model.Float(28), Geometry: pt(75, 19)},
				{LayerName: "Air Quality", RegionName: "Delhi", RawValue: model.Float(176), Geometry: pt(77, 28)},
				{LayerName: "Air Quality", RegionName: "Goa", Geometry: pt(74, 15)},
			}},
			"Water": {Layer: "Water", CRS: "EPSG:3857", Records: []model.FeatureRecord{
				{LayerName: "Water", RegionName: "Maharashtra", RawValue: model.Float(75), Geometry: pt(8348961, 2154935)},
			}},
			"Agriculture": {Layer: "Agriculture", CRS: "", Records: []model.FeatureRecord{
				{LayerName: "Agriculture", RegionName: "Punjab", RawValue: model.Float(3), Geometry: pt(1, 1)},
			}},
		},
		fail: map[string]error{},
	}
	return New(layer.Default(), fl, nil), fl
}

func TestRecompute_ClassifiesAndComposes(t *testing.T) {
	p, _ := newFixture()
	res, err := p.Recompute(context.Background(), model.Selection{Layers: []string{"Water", "Air Quality"}, Search: "mahar"})
	require.NoError(t, err)

	assert.False(t, res.Empty)
	assert.NotEmpty(t, res.CycleID)
	assert.Equal(t, []string{"Water", "Air Quality"}, res.Composite.Layers)
	assert.Equal(t, 4, res.Composite.Len())

	air, ok := res.Layer("Air Quality")
	require.True(t, ok)
	require.NotNil(t, air.Records[0].ClassIndex)
	assert.Equal(t, 1, *air.Records[0].ClassIndex)
	assert.Nil(t, air.Records[1].ClassIndex, "final edge excluded")

	w := res.Composite.Records[0].Geometry.(orb.Point)
	assert.InDelta(t, 75, w.Lon(), 0.01)

	assert.True(t, res.Searching)
	require.Equal(t, 2, res.Highlight.Len())
	for _, r := range res.Highlight.Records {
		assert.Equal(t, "Maharashtra", r.RegionName)
	}
}

func TestRecompute_EmptySelection(t *testing.T) {
	p, fl := newFixture()
	res, err := p.Recompute(context.Background(), model.Selection{})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, Placeholder, res.Message)
	assert.Equal(t, 0, res.Composite.Len())
	assert.Empty(t, fl.calls)
}

func TestRecompute_FailureIsolation(t *testing.T) {
	p, fl := newFixture()
	fl.fail["Water"] = errors.New("table missing")

	res, err := p.Recompute(context.Background(), model.Selection{Layers: []string{"Nope", "Water", "Air Quality"}})
	require.NoError(t, err)
	require.Len(t, res.Failures, 2)

	var ule *model.UnknownLayerError
	assert.True(t, errors.As(res.Failures[0].Err, &ule))
	var dse *model.DataSourceError
	assert.True(t, errors.As(res.Failures[1].Err, &dse))

	assert.Equal(t, []string{"Air Quality"}, res.Composite.Layers)
	assert.False(t, res.Empty)
}

func TestRecompute_AllFailedIsEmpty(t *testing.T) {
	p, fl := newFixture()
	fl.fail["Water"] = errors.New("down")
	res, err := p.Recompute(context.Background(), model.Selection{Layers: []string{"Water"}})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, Placeholder, res.Message)
	assert.Len(t, res.Failures, 1)
}

func TestRecompute_ProjectionErrorIsFatal(t *testing.T) {
	p, _ := newFixture()
	_, err := p.Recompute(context.Background(), model.Selection{Layers: []string{"Air Quality", "Agriculture"}})
	var pe *model.ProjectionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "Agriculture", pe.Layer)
}

func TestRecompute_RereadsEveryCycle(t *testing.T) {
	p, fl := newFixture()
	sel := model.Selection{Layers: []string{"Air Quality", "Air Quality", " Water "}}
	for i := 0; i < 2; i++ {
		_, err := p.Recompute(context.Background(), sel)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"Air Quality", "Water", "Air Quality", "Water"}, fl.calls)
}

func TestRecompute_CanceledContext(t *testing.T) {
	p, fl := newFixture()
	fl.fail["Water"] = context.Canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Recompute(ctx, model.Selection{Layers: []string{"Water"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompare(t *testing.T) {
	p, _ := newFixture()
	cmp, err := p.Compare(context.Background(), "Air Quality", "Water", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Air Quality"}, cmp.Left.Composite.Layers)
	assert.Equal(t, []string{"Water"}, cmp.Right.Composite.Layers)
	assert.NotEqual(t, cmp.Left.CycleID, cmp.Right.CycleID)

	for _, pair := range [][2]string{{"Water", "Water"}, {"", "Water"}, {"Water", " "}} {
		_, err := p.Compare(context.Background(), pair[0], pair[1], "")
		assert.ErrorIs(t, err, ErrCompareArity)
	}
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, Dedupe([]string{" A", "", "B", "A", "B "}))
	assert.Empty(t, Dedupe(nil))
}
