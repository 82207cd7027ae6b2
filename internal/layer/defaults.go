package layer

import "github.com/mohammed-shakir/urbansphere/internal/core/model"

// DefaultSpecs is the thematic layer table of the state-level dashboard.
// Sources are GeoJSON exports of the original GeoPackages, relative to DATA_DIR.
func DefaultSpecs() []model.LayerSpec {
	return []model.LayerSpec{
		{
			Name:        "Air Quality",
			Source:      "states_india_air.geojson",
			Table:       "states_india_air",
			ValueColumn: "india_states_aqi_no_latlong_AQI-US",
			BinEdges:    [6]float64{15, 28, 78, 109, 144, 176},
			Colors: [5]model.RGBA{
				{255, 247, 236, 150}, {254, 232, 200, 150}, {253, 187, 132, 150}, {252, 141, 89, 150}, {215, 48, 31, 150},
			},
		},
		{
			Name:        "Agriculture",
			Source:      "states_india_Agri.geojson",
			Table:       "states_india_Agri",
			ValueColumn: "state_agricultural_land_Agricultural Land (in thousand hectares)",
			BinEdges:    [6]float64{1, 2246, 6770, 12777, 20751, 25493},
			Colors: [5]model.RGBA{
				{237, 248, 233, 150}, {199, 233, 192, 150}, {161, 217, 155, 150}, {116, 196, 118, 150}, {35, 139, 69, 150},
			},
		},
		{
			Name:        "Electricity",
			Source:      "states_india_electricity.geojson",
			Table:       "states_india_electricity",
			ValueColumn: "state_electricity_consumption_2020_21_Electricity Consumption (GWh) 2020-21",
			BinEdges:    [6]float64{53, 11225, 24108, 64888, 94592, 126423},
			Colors: [5]model.RGBA{
				{255, 245, 235, 150}, {254, 230, 206, 150}, {253, 208, 162, 150}, {253, 174, 107, 150}, {230, 85, 13, 150},
			},
		},
		{
			Name:        "Population",
			Source:      "states_india_population.geojson",
			Table:       "states_india_population",
			ValueColumn: "state_population_Population",
			BinEdges:    [6]float64{64473, 10086292, 41974219, 72626809, 112374333, 199812341},
			Colors: [5]model.RGBA{
				{255, 245, 240, 150}, {254, 224, 210, 150}, {252, 187, 161, 150}, {252, 146, 114, 150}, {222, 45, 38, 150},
			},
		},
		{
			Name:        "Water",
			Source:      "states_india_water.geojson",
			Table:       "states_india_water",
			ValueColumn: "Safe_drinking_2011 Total",
			BinEdges:    [6]float64{23, 34, 54, 70, 88, 99},
			Colors: [5]model.RGBA{
				{240, 249, 255, 150}, {198, 219, 239, 150}, {158, 202, 225, 150}, {107, 174, 214, 150}, {33, 113, 181, 150},
			},
		},
	}
}

// Default returns the registry built from DefaultSpecs.
func Default() *Registry {
	r, err := New(DefaultSpecs()...)
	if err != nil {
		panic("layer: invalid default table: " + err.Error())
	}
	return r
}
