// Package wfs serves dataset tables from an OGC WFS endpoint such as
// GeoServer. Locators look like wfs://host:8080/geoserver; wfss uses https.
package wfs

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mohammed-shakir/urbansphere/internal/dataset"
)

// Locator is a parsed wfs(s) dataset locator.
type Locator struct {
	// OWS is the GetFeature endpoint without query.
	OWS *url.URL
	// Extra holds locator query parameters passed through to every request
	// (cql_filter, srsName, ...).
	Extra url.Values
}

func OWSEndpoint(base string) string {
	return strings.TrimRight(base, "/") + "/ows"
}

func ParseLocator(locator string) (Locator, error) {
	u, err := dataset.ParseURL(locator)
	if err != nil {
		return Locator{}, err
	}
	switch u.Scheme {
	case "wfs":
		u.Scheme = "http"
	case "wfss":
		u.Scheme = "https"
	default:
		return Locator{}, fmt.Errorf("wfs locator: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return Locator{}, fmt.Errorf("wfs locator: missing host")
	}
	extra := u.Query()
	u.RawQuery = ""
	u.Fragment = ""
	ows, err := url.Parse(OWSEndpoint(u.String()))
	if err != nil {
		return Locator{}, fmt.Errorf("wfs locator: %w", err)
	}
	return Locator{OWS: ows, Extra: extra}, nil
}

// GetFeatureParams builds a WFS 2.0 GetFeature query for one feature type.
// Reserved keys always win over pass-through ones.
func GetFeatureParams(typeName string, extra url.Values) url.Values {
	params := url.Values{}
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	params.Set("service", "WFS")
	params.Set("version", "2.0.0")
	params.Set("request", "GetFeature")
	params.Set("typeNames", typeName)
	params.Set("outputFormat", "application/json")
	return params
}
