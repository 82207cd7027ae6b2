package wfs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mohammed-shakir/urbansphere/internal/dataset"
)

const statesDoc = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"st_nm":"Goa","AQI":52},"geometry":{"type":"Point","coordinates":[74,15.4]}}]}`

func TestParseLocator(t *testing.T) {
	loc, err := ParseLocator("wfs://localhost:8080/geoserver?cql_filter=year%3D2020")
	if err != nil {
		t.Fatalf("ParseLocator: %v", err)
	}
	if got := loc.OWS.String(); got != "http://localhost:8080/geoserver/ows" {
		t.Fatalf("ows=%q", got)
	}
	if loc.Extra.Get("cql_filter") != "year=2020" {
		t.Fatalf("extra=%v", loc.Extra)
	}

	loc, err = ParseLocator("wfss://maps.example/geoserver/")
	if err != nil || loc.OWS.String() != "https://maps.example/geoserver/ows" {
		t.Fatalf("wfss: %v %v", loc.OWS, err)
	}

	if _, err := ParseLocator("http://maps.example"); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := ParseLocator("wfs:///geoserver"); err == nil {
		t.Fatalf("expected missing host error")
	}
}

func TestGetFeatureParams_ReservedKeysWin(t *testing.T) {
	v := GetFeatureParams("india:states_air", url.Values{"outputFormat": {"GML3"}, "srsName": {"EPSG:4326"}})
	want := map[string]string{
		"service":      "WFS",
		"version":      "2.0.0",
		"request":      "GetFeature",
		"typeNames":    "india:states_air",
		"outputFormat": "application/json",
		"srsName":      "EPSG:4326",
	}
	for k, w := range want {
		if got := v.Get(k); got != w {
			t.Fatalf("param %q got %q want %q", k, got, w)
		}
	}
}

func TestFetch(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geoserver/ows" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query()
		switch gotQuery.Get("typeNames") {
		case "india:states_air":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(statesDoc))
		default:
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(`<ows:ExceptionReport>unknown type</ows:ExceptionReport>`))
		}
	}))
	defer srv.Close()

	locator := "wfs://" + strings.TrimPrefix(srv.URL, "http://") + "/geoserver?cql_filter=AQI%3E10"
	src := New(srv.Client())

	tbl, err := src.Fetch(context.Background(), locator, "india:states_air")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(tbl.Rows) != 1 || tbl.CRS != "EPSG:4326" {
		t.Fatalf("table=%+v", tbl)
	}
	if gotQuery.Get("cql_filter") != "AQI>10" || gotQuery.Get("outputFormat") != "application/json" {
		t.Fatalf("query=%v", gotQuery)
	}

	if _, err := src.Fetch(context.Background(), locator, "india:nope"); err == nil {
		t.Fatalf("expected error for exception report")
	}
}

func TestRegisteredSchemes(t *testing.T) {
	have := map[string]bool{}
	for _, s := range dataset.Schemes() {
		have[s] = true
	}
	if !have["wfs"] || !have["wfss"] {
		t.Fatalf("schemes=%v", dataset.Schemes())
	}
}
