// Package utm selects the best-fitting UTM zone for a dataset, reprojects the
// dataset into it and repairs geometries the projection left invalid.
package utm

import (
	"math"
	"strconv"

	"github.com/rotisserie/eris"
)

// Zone is a UTM longitudinal zone number in [1, 60].
type Zone int

// Zone bounds.
const (
	MinZone Zone = 1
	MaxZone Zone = 60
)

// Valid reports whether z is in [1, 60].
func (z Zone) Valid() bool { return z >= MinZone && z <= MaxZone }

func (z Zone) String() string { return strconv.Itoa(int(z)) }

// ZoneOf returns the regular 6-degree zone containing lon. Longitudes outside
// [-180, 180), infinities included, are clamped into the first or last zone;
// NaN fails with ErrInvalidCoordinate. lat does not affect the result and is
// accepted for symmetry with ZoneOfIrregular.
func ZoneOf(lat, lon float64) (Zone, error) {
	if math.IsNaN(lon) {
		return 0, eris.Wrap(ErrInvalidCoordinate, "utm: zone of NaN longitude")
	}
	// Clamp before converting: out-of-range floats do not convert to int.
	f := math.Floor((lon+180)/6) + 1
	switch {
	case f < float64(MinZone):
		return MinZone, nil
	case f > float64(MaxZone):
		return MaxZone, nil
	}
	return Zone(f), nil
}

// ZoneOfIrregular is ZoneOf with the exceptions of the UTM grid: zone 32 is
// widened over south-western Norway and zones 32, 34 and 36 are absent around
// Svalbard.
func ZoneOfIrregular(lat, lon float64) (Zone, error) {
	if lat >= 56 && lat < 64 && lon >= 3 && lon < 12 {
		return 32, nil
	}
	if lat >= 72 && lat <= 84 && lon >= 0 && lon < 42 {
		switch {
		case lon < 9:
			return 31, nil
		case lon < 21:
			return 33, nil
		case lon < 33:
			return 35, nil
		default:
			return 37, nil
		}
	}
	return ZoneOf(lat, lon)
}
