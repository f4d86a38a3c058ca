package geometry

import "github.com/twpayne/go-geom"

// Validate reports whether a polygonal geometry is a valid area under the
// OGC rules GEOS applies: rings closed and simple, holes inside their shell
// and not nested in each other, parts of a MultiPolygon neither overlapping
// nor nested. Failures are returned as a *TopologyError. Non-polygonal
// geometries are always valid.
func Validate(g geom.T) error {
	polys, ok := polygonal(g)
	if !ok {
		return nil
	}
	if !finite(g.FlatCoords()) {
		return &TopologyError{Reason: "invalid coordinate"}
	}
	for _, p := range polys {
		for ri := 0; ri < p.NumLinearRings(); ri++ {
			if err := checkRing(p.LinearRing(ri)); err != nil {
				return err
			}
		}
	}

	var te *TopologyError
	err := withGEOS("validate", func() error {
		gg, err := toGEOS("validate", planar(polys, false))
		if err != nil {
			return err
		}
		if !gg.IsValid() {
			te = topologyFromReason(gg.IsValidReason())
		}
		return nil
	})
	if err != nil {
		return err
	}
	if te != nil {
		return te
	}
	return nil
}

// checkRing rejects rings GEOS cannot build at all.
func checkRing(r *geom.LinearRing) error {
	n := r.NumCoords()
	if n == 0 {
		return nil
	}
	first, last := r.Coord(0), r.Coord(n-1)
	if first[0] != last[0] || first[1] != last[1] {
		return &TopologyError{Reason: "ring is not closed", Point: geom.Coord{first[0], first[1]}}
	}
	if n < 4 {
		return &TopologyError{Reason: "too few points in geometry component", Point: geom.Coord{first[0], first[1]}}
	}
	return nil
}
