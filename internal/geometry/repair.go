package geometry

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geos"
)

// Repair rebuilds a polygonal geometry into a valid area with GEOS MakeValid
// using the structure method: each shell is made valid with both of its
// orientations kept, holes are subtracted from their shell, and the parts of
// a MultiPolygon are unioned. Collapsed parts are dropped. Shells come back
// counter-clockwise and holes clockwise, in the input layout; ordinates
// beyond XY are taken from the nearest input vertex. A single resulting
// polygon is returned as a Polygon unless g is a MultiPolygon. Non-polygonal
// geometries are returned as copies.
func Repair(g geom.T) (geom.T, error) {
	polys, ok := polygonal(g)
	if !ok {
		return Clone(g)
	}
	if !finite(g.FlatCoords()) {
		return nil, eris.Wrap(ErrNonFinite, "geometry: repair")
	}

	var parts []*geom.Polygon
	in := planar(polys, true)
	if in.NumPolygons() > 0 {
		err := withGEOS("repair", func() error {
			gg, err := toGEOS("repair", in)
			if err != nil {
				return err
			}
			fixed := gg.MakeValidWithParams(geos.MakeValidStructure, geos.MakeValidDiscardCollapsed)
			out, err := fromGEOS("repair", fixed)
			if err != nil {
				return err
			}
			parts = polygonParts(out)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	layout := g.Layout()
	for i, p := range parts {
		p = orient(planar([]*geom.Polygon{p}, false).Polygon(0))
		if layout != geom.XY {
			p = lift(p, layout, g.FlatCoords())
		}
		parts[i] = p
	}

	if _, multi := g.(*geom.MultiPolygon); !multi && len(parts) == 1 {
		return parts[0].SetSRID(g.SRID()), nil
	}
	mp := geom.NewMultiPolygon(layout).SetSRID(g.SRID())
	for _, p := range parts {
		if err := mp.Push(p); err != nil {
			return nil, eris.Wrap(err, "geometry: assemble multipolygon")
		}
	}
	return mp, nil
}
