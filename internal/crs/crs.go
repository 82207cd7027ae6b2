// Package crs normalises reference-system tags and reprojects geometries to EPSG:4326.
package crs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const WGS84 = "EPSG:4326"

type Kind int

const (
	Unknown Kind = iota
	Geographic
	WebMercator
)

var epsgCode = regexp.MustCompile(`(?i)epsg(?::[\d.]*:|:|/[\d.]+/|/)(\d+)$`)

// Normalize maps the common spellings of a reference system to "EPSG:<code>"
// (or "OGC:CRS84"). Unrecognised tags are returned trimmed and upper-cased.
func Normalize(tag string) string {
	t := strings.TrimSpace(tag)
	if t == "" {
		return ""
	}
	up := strings.ToUpper(t)
	if strings.HasSuffix(up, "CRS84") {
		return "OGC:CRS84"
	}
	if m := epsgCode.FindStringSubmatch(t); m != nil {
		return "EPSG:" + m[1]
	}
	return up
}

func Classify(tag string) Kind {
	switch Normalize(tag) {
	case "EPSG:4326", "OGC:CRS84":
		return Geographic
	case "EPSG:3857", "EPSG:900913", "EPSG:102100", "EPSG:102113", "EPSG:3785":
		return WebMercator
	default:
		return Unknown
	}
}

// ToWGS84 returns a reprojected copy of g; the input is never modified.
func ToWGS84(g orb.Geometry, tag string) (orb.Geometry, error) {
	switch Classify(tag) {
	case Geographic:
		return g, nil
	case WebMercator:
		if g == nil {
			return nil, nil
		}
		return project.Geometry(orb.Clone(g), project.Mercator.ToWGS84), nil
	default:
		if strings.TrimSpace(tag) == "" {
			return nil, fmt.Errorf("reference system is undetermined")
		}
		return nil, fmt.Errorf("unsupported reference system %q", tag)
	}
}

// Supported reports whether ToWGS84 can handle tag.
func Supported(tag string) bool { return Classify(tag) != Unknown }
