package postgis

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }
func i64p(n int64) *int64  { return &n }

func TestParseLocator_ConsumesOwnParams(t *testing.T) {
	l, err := ParseLocator("postgres://u:p@db:5432/gis?sslmode=disable&schema=census&geom=wkb_geometry")
	require.NoError(t, err)
	assert.Equal(t, "census", l.Schema)
	assert.Equal(t, "wkb_geometry", l.Geometry)
	assert.Equal(t, "postgres://u:p@db:5432/gis?sslmode=disable", l.DSN)

	l, err = ParseLocator("postgres://db/gis")
	require.NoError(t, err)
	assert.Equal(t, "public", l.Schema)
	assert.Equal(t, "geom", l.Geometry)
}

func TestQuery_QuotesIdentifiers(t *testing.T) {
	q := Query("public", `states"india`, "geom")
	assert.Equal(t,
		`SELECT ST_AsGeoJSON(t."geom") AS geometry, ST_SRID(t."geom") AS srid, row_to_json(t)::text AS attrs FROM "public"."states""india" AS t`,
		q)
}

func TestBuildTable(t *testing.T) {
	rows := []row{
		{Geometry: strp(`{"type":"Point","coordinates":[8500000,2900000]}`), SRID: i64p(3857), Attrs: `{"st_nm":"Bihar","Population":104099452,"geom":"0101"}`},
		{Geometry: nil, SRID: nil, Attrs: `{"st_nm":"Goa","Population":null}`},
	}
	tbl, err := buildTable("states_india_population", "geom", rows)
	require.NoError(t, err)
	assert.Equal(t, "EPSG:3857", tbl.CRS)
	require.Len(t, tbl.Rows, 2)
	assert.IsType(t, orb.Point{}, tbl.Rows[0].Geometry)
	assert.NotContains(t, tbl.Rows[0].Attributes, "geom")
	assert.Nil(t, tbl.Rows[1].Geometry)
}

func TestBuildTable_SRIDEdgeCases(t *testing.T) {
	_, err := buildTable("t", "geom", []row{
		{SRID: i64p(4326), Attrs: `{}`},
		{SRID: i64p(3857), Attrs: `{}`},
	})
	assert.Error(t, err)

	tbl, err := buildTable("t", "geom", []row{{SRID: i64p(0), Attrs: `{}`}})
	require.NoError(t, err)
	assert.Equal(t, "", tbl.CRS)

	tbl, err = buildTable("t", "geom", nil)
	require.NoError(t, err)
	assert.Equal(t, "EPSG:4326", tbl.CRS)

	_, err = buildTable("t", "geom", []row{{Attrs: `nope`}})
	assert.Error(t, err)
}
