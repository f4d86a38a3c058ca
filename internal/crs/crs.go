// Package crs names coordinate reference systems by their PROJ.4 descriptor
// and maps the common ones to and from EPSG codes.
package crs

import (
	"fmt"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
)

// Descriptor is a PROJ.4 parameter string identifying a coordinate reference
// system. Two descriptors are interchangeable only if they are textually
// identical.
type Descriptor string

// Geographic is WGS84 longitude/latitude in degrees.
const Geographic Descriptor = "+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs"

// WebMercator is the spherical Mercator used by web map tiles (EPSG:3857).
const WebMercator Descriptor = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +wktext +no_defs"

// nad83Geographic is NAD83 longitude/latitude (EPSG:4269).
const nad83Geographic Descriptor = "+proj=longlat +ellps=GRS80 +datum=NAD83 +no_defs"

var (
	// ErrInvalid is returned for descriptors that are not well-formed.
	ErrInvalid = eris.New("crs: invalid descriptor")
	// ErrUnsupported is returned for well-formed descriptors naming a
	// projection the projection library does not implement.
	ErrUnsupported = eris.New("crs: unsupported descriptor")
	// ErrOutOfDomain is returned when a coordinate cannot be projected.
	ErrOutOfDomain = eris.New("crs: coordinate outside projection domain")
)

// UTM returns the northern-hemisphere WGS84 UTM descriptor for zone, in meters.
func UTM(zone int) Descriptor {
	return Descriptor(fmt.Sprintf("+proj=utm +zone=%d +ellps=WGS84 +datum=WGS84 +units=m +no_defs", zone))
}

// UTMSouth returns the southern-hemisphere WGS84 UTM descriptor for zone.
func UTMSouth(zone int) Descriptor {
	return Descriptor(fmt.Sprintf("+proj=utm +zone=%d +south +ellps=WGS84 +datum=WGS84 +units=m +no_defs", zone))
}

// String implements fmt.Stringer.
func (d Descriptor) String() string { return string(d) }

// IsEmpty reports whether d carries no parameters.
func (d Descriptor) IsEmpty() bool { return strings.TrimSpace(string(d)) == "" }

// Equal reports whether d and o are textually identical.
func (d Descriptor) Equal(o Descriptor) bool { return d == o }

// Param returns the value of +key. Flags without a value, such as +south,
// report ok with an empty value.
func (d Descriptor) Param(key string) (string, bool) {
	for _, tok := range strings.Fields(string(d)) {
		k, v, _ := strings.Cut(strings.TrimPrefix(tok, "+"), "=")
		if k == key {
			return v, true
		}
	}
	return "", false
}

// IsGeographic reports whether d is a longitude/latitude system.
func (d Descriptor) IsGeographic() bool {
	switch p, _ := d.Param("proj"); p {
	case "longlat", "latlong", "lonlat", "latlon":
		return true
	}
	return false
}

// Parse checks the descriptor syntax and hands it to ctessum/geom/proj.
// Malformed descriptors fail with ErrInvalid; projections the library cannot
// transform fail with ErrUnsupported.
func Parse(d Descriptor) (*proj.SR, error) {
	if d.IsEmpty() {
		return nil, eris.Wrap(ErrInvalid, "crs: empty descriptor")
	}
	seen := make(map[string]bool)
	for _, tok := range strings.Fields(string(d)) {
		if !strings.HasPrefix(tok, "+") || len(tok) < 2 {
			return nil, eris.Wrapf(ErrInvalid, "crs: token %q does not start with '+'", tok)
		}
		key, _, _ := strings.Cut(tok[1:], "=")
		if seen[key] {
			return nil, eris.Wrapf(ErrInvalid, "crs: duplicate parameter +%s", key)
		}
		seen[key] = true
	}
	if p, _ := d.Param("proj"); p == "" {
		return nil, eris.Wrapf(ErrInvalid, "crs: %q has no +proj", d)
	}

	sr, err := proj.Parse(string(d))
	if err != nil {
		return nil, eris.Wrapf(ErrInvalid, "crs: %q: %v", d, err)
	}
	if _, err := sr.NewTransform(sr); err != nil {
		return nil, eris.Wrapf(ErrUnsupported, "crs: %q: %v", d, err)
	}
	return sr, nil
}
