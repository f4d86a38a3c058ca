package geometry

import (
	"math"
	"strconv"

	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/reproject-cli/internal/crs"
)

// CoordTransform maps one coordinate pair between reference systems.
type CoordTransform func(x, y float64) (float64, float64, error)

func identity(x, y float64) (float64, float64, error) { return x, y, nil }

// NewCoordTransform returns a transform from src to dst built on
// ctessum/geom/proj. Equal descriptors yield the identity. Latitudes beyond
// the poles, and longitudes a quarter turn or more from the central meridian
// of a transverse Mercator target, fail with crs.ErrOutOfDomain.
func NewCoordTransform(src, dst crs.Descriptor) (CoordTransform, error) {
	if src.IsEmpty() || dst.IsEmpty() {
		return nil, eris.Wrap(crs.ErrInvalid, "geometry: empty descriptor")
	}
	if src.Equal(dst) {
		return identity, nil
	}

	from, err := crs.Parse(src)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: source %q", src)
	}
	to, err := crs.Parse(dst)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: target %q", dst)
	}
	direct, err := from.NewTransform(to)
	if err != nil {
		return nil, eris.Wrapf(crs.ErrUnsupported, "geometry: %q to %q: %v", src, dst, err)
	}

	cm, hasCM := centralMeridian(dst)
	geographic := src.IsGeographic()
	var toGeo proj.Transformer
	if hasCM && !geographic {
		geo, err := crs.Parse(crs.Geographic)
		if err != nil {
			return nil, err
		}
		if toGeo, err = from.NewTransform(geo); err != nil {
			return nil, eris.Wrapf(crs.ErrUnsupported, "geometry: %q to geographic: %v", src, err)
		}
	}

	return func(x, y float64) (float64, float64, error) {
		if geographic || toGeo != nil {
			lon, lat := x, y
			if toGeo != nil {
				var err error
				if lon, lat, err = toGeo(x, y); err != nil {
					return 0, 0, eris.Wrapf(crs.ErrOutOfDomain, "geometry: (%g, %g): %v", x, y, err)
				}
			}
			if math.Abs(lat) > 90 || (hasCM && math.Abs(math.Remainder(lon-cm, 360)) >= 90) {
				return 0, 0, eris.Wrapf(crs.ErrOutOfDomain, "geometry: (%g, %g) is outside %s", x, y, dst)
			}
		}
		ox, oy, err := direct(x, y)
		if err != nil {
			return 0, 0, eris.Wrapf(crs.ErrOutOfDomain, "geometry: (%g, %g): %v", x, y, err)
		}
		if math.IsNaN(ox) || math.IsNaN(oy) || math.IsInf(ox, 0) || math.IsInf(oy, 0) {
			return 0, 0, eris.Wrapf(crs.ErrOutOfDomain, "geometry: (%g, %g) projects to a non-finite coordinate", x, y)
		}
		return ox, oy, nil
	}, nil
}

// centralMeridian returns the central meridian in degrees of a transverse
// Mercator descriptor.
func centralMeridian(d crs.Descriptor) (float64, bool) {
	switch p, _ := d.Param("proj"); p {
	case "utm":
		z, _ := d.Param("zone")
		zone, err := strconv.Atoi(z)
		if err != nil {
			return 0, false
		}
		return float64(zone-1)*6 - 180 + 3, true
	case "tmerc", "etmerc":
		v, _ := d.Param("lon_0")
		if v == "" {
			return 0, true
		}
		lon0, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return lon0, true
	}
	return 0, false
}

// Transformer implements Backend. Ordinates beyond XY are kept as they are.
func (Planar) Transformer(src, dst crs.Descriptor) (Transformer, error) {
	tr, err := NewCoordTransform(src, dst)
	if err != nil {
		return nil, backendErr("transform", err)
	}
	return func(g geom.T) (geom.T, error) {
		out, err := Clone(g)
		if err != nil {
			return nil, backendErr("transform", err)
		}
		var first error
		geom.TransformInPlace(out, func(c geom.Coord) {
			if first != nil {
				return
			}
			x, y, err := tr(c[0], c[1])
			if err != nil {
				first = err
				return
			}
			c[0], c[1] = x, y
		})
		if first != nil {
			return nil, backendErr("transform", first)
		}
		return out, nil
	}, nil
}
