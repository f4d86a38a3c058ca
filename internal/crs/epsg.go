package crs

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// FromEPSG returns the descriptor for a supported EPSG code.
func FromEPSG(code int) (Descriptor, error) {
	switch {
	case code == 4326:
		return Geographic, nil
	case code == 4269:
		return nad83Geographic, nil
	case code == 3857 || code == 900913:
		return WebMercator, nil
	case code > 32600 && code <= 32660:
		return UTM(code - 32600), nil
	case code > 32700 && code <= 32760:
		return UTMSouth(code - 32700), nil
	case code > 26900 && code <= 26923:
		return nad83UTM(code - 26900), nil
	default:
		return "", eris.Wrapf(ErrUnsupported, "crs: EPSG:%d", code)
	}
}

func nad83UTM(zone int) Descriptor {
	return Descriptor("+proj=utm +zone=" + strconv.Itoa(zone) + " +ellps=GRS80 +datum=NAD83 +units=m +no_defs")
}

// Resolve accepts an "EPSG:nnnn" authority code (case-insensitive, with an
// optional "urn:ogc:def:crs:EPSG::" prefix) or a raw PROJ.4 descriptor.
func Resolve(s string) (Descriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if strings.HasPrefix(s, "+") {
		d := Descriptor(s)
		if _, err := Parse(d); err != nil {
			return "", err
		}
		return d, nil
	}

	code := s
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "urn:ogc:def:crs:epsg::"):
		code = s[len("urn:ogc:def:crs:epsg::"):]
	case strings.HasPrefix(lower, "epsg:"):
		code = s[len("epsg:"):]
	case lower == "urn:ogc:def:crs:ogc:1.3:crs84" || lower == "crs84":
		return Geographic, nil
	}

	n, err := strconv.Atoi(code)
	if err != nil {
		return "", eris.Wrapf(ErrInvalid, "crs: %q is neither an EPSG code nor a PROJ.4 string", s)
	}
	return FromEPSG(n)
}

// SRID returns the EPSG code of d when d is one of the descriptors FromEPSG
// produces, or 0 otherwise.
func SRID(d Descriptor) int {
	switch d {
	case Geographic:
		return 4326
	case nad83Geographic:
		return 4269
	case WebMercator:
		return 3857
	}
	for zone := 1; zone <= 60; zone++ {
		switch d {
		case UTM(zone):
			return 32600 + zone
		case UTMSouth(zone):
			return 32700 + zone
		case nad83UTM(zone):
			if zone <= 23 {
				return 26900 + zone
			}
		}
	}
	return 0
}
