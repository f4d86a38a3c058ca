// Package geometry provides the planar geometry operations used by the
// reprojection pipeline: coordinate transformation, centroids, a validity
// check and zero-distance buffer repair.
package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/reproject-cli/internal/crs"
)

// Transformer converts a geometry from one reference system to another.
type Transformer func(g geom.T) (geom.T, error)

// Backend is the capability set required by the reprojection pipeline.
type Backend interface {
	// Transformer returns a function mapping geometries from src to dst.
	Transformer(src, dst crs.Descriptor) (Transformer, error)
	// Centroid returns the planar centroid of g.
	Centroid(g geom.T) (geom.Coord, error)
	// SelfIntersection returns g intersected with itself. Invalid polygonal
	// geometries fail with a *TopologyError.
	SelfIntersection(g geom.T) (geom.T, error)
	// Buffer returns g buffered by distance.
	Buffer(g geom.T, distance float64) (geom.T, error)
}

// Planar implements Backend on go-geom, with coordinate transformation by
// ctessum/geom/proj and validity and repair by GEOS through go-geos.
type Planar struct{}

var _ Backend = Planar{}

// Centroid implements Backend.
func (Planar) Centroid(g geom.T) (geom.Coord, error) {
	if g == nil || g.Empty() {
		return nil, backendErr("centroid", ErrEmptyGeometry)
	}
	c, err := xy.Centroid(g)
	if err != nil {
		return nil, backendErr("centroid", eris.Wrap(err, "geometry: centroid"))
	}
	if len(c) < 2 || math.IsNaN(c[0]) || math.IsNaN(c[1]) || math.IsInf(c[0], 0) || math.IsInf(c[1], 0) {
		return nil, backendErr("centroid", eris.New("geometry: centroid is not finite"))
	}
	return c, nil
}

// SelfIntersection implements Backend. Valid geometries are returned as an
// independent copy.
func (Planar) SelfIntersection(g geom.T) (geom.T, error) {
	if err := Validate(g); err != nil {
		return nil, err
	}
	out, err := Clone(g)
	if err != nil {
		return nil, backendErr("intersection", err)
	}
	return out, nil
}

// Buffer implements Backend for a distance of zero, which rebuilds polygonal
// geometries into valid ones with Repair.
func (Planar) Buffer(g geom.T, distance float64) (geom.T, error) {
	if distance != 0 {
		return nil, backendErr("buffer", eris.Wrapf(ErrUnsupportedBuffer, "geometry: distance %g", distance))
	}
	out, err := Repair(g)
	if err != nil {
		return nil, backendErr("buffer", err)
	}
	return out, nil
}

// Clone returns a deep copy of g.
func Clone(g geom.T) (geom.T, error) {
	switch g := g.(type) {
	case *geom.Point:
		return g.Clone(), nil
	case *geom.MultiPoint:
		return g.Clone(), nil
	case *geom.LineString:
		return g.Clone(), nil
	case *geom.LinearRing:
		return g.Clone(), nil
	case *geom.MultiLineString:
		return g.Clone(), nil
	case *geom.Polygon:
		return g.Clone(), nil
	case *geom.MultiPolygon:
		return g.Clone(), nil
	case nil:
		return nil, eris.Wrap(ErrUnsupportedGeometry, "geometry: nil geometry")
	default:
		return nil, eris.Wrapf(ErrUnsupportedGeometry, "geometry: %T", g)
	}
}
