package geometry

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geos"
)

// withGEOS runs fn and turns a GEOS panic into a *BackendError.
func withGEOS(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = backendErr(op, eris.Errorf("geometry: geos: %v", r))
		}
	}()
	return fn()
}

func toGEOS(op string, g geom.T) (*geos.Geom, error) {
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, backendErr(op, eris.Wrap(err, "geometry: encode for geos"))
	}
	gg, err := geos.NewGeomFromWKB(data)
	if err != nil {
		return nil, backendErr(op, eris.Wrap(err, "geometry: geos read"))
	}
	return gg, nil
}

func fromGEOS(op string, g *geos.Geom) (geom.T, error) {
	t, err := ewkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, backendErr(op, eris.Wrap(err, "geometry: decode from geos"))
	}
	return t, nil
}

// topologyFromReason converts a GEOS validity reason such as
// "Self-intersection[9.006 45.004]".
func topologyFromReason(s string) *TopologyError {
	reason, loc, found := strings.Cut(s, "[")
	te := &TopologyError{Reason: strings.ToLower(strings.TrimSpace(reason))}
	if !found {
		return te
	}
	fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(loc), "]"))
	if len(fields) < 2 {
		return te
	}
	x, errX := strconv.ParseFloat(fields[0], 64)
	y, errY := strconv.ParseFloat(fields[1], 64)
	if errX == nil && errY == nil {
		te.Point = geom.Coord{x, y}
	}
	return te
}

func polygonal(g geom.T) ([]*geom.Polygon, bool) {
	switch g := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{g}, true
	case *geom.MultiPolygon:
		polys := make([]*geom.Polygon, 0, g.NumPolygons())
		for i := 0; i < g.NumPolygons(); i++ {
			polys = append(polys, g.Polygon(i))
		}
		return polys, true
	default:
		return nil, false
	}
}

// polygonParts collects the non-empty polygons of a GEOS result.
func polygonParts(g geom.T) []*geom.Polygon {
	switch g := g.(type) {
	case *geom.Polygon:
		if g.Empty() {
			return nil
		}
		return []*geom.Polygon{g}
	case *geom.MultiPolygon:
		var out []*geom.Polygon
		for i := 0; i < g.NumPolygons(); i++ {
			out = append(out, polygonParts(g.Polygon(i))...)
		}
		return out
	case *geom.GeometryCollection:
		var out []*geom.Polygon
		for _, c := range g.Geoms() {
			out = append(out, polygonParts(c)...)
		}
		return out
	default:
		return nil
	}
}

// planar copies the rings of polys into one XY MultiPolygon. With fix set,
// open rings are closed and rings with fewer than four positions dropped,
// together with the holes of a dropped shell.
func planar(polys []*geom.Polygon, fix bool) *geom.MultiPolygon {
	var (
		flat  []float64
		endss [][]int
	)
	for _, p := range polys {
		stride := p.Stride()
		var ends []int
		for ri := 0; ri < p.NumLinearRings(); ri++ {
			src := p.LinearRing(ri).FlatCoords()
			start := len(flat)
			for k := 0; k+1 < len(src); k += stride {
				flat = append(flat, src[k], src[k+1])
			}
			if fix {
				n := len(flat) - start
				if n >= 2 && (flat[start] != flat[len(flat)-2] || flat[start+1] != flat[len(flat)-1]) {
					flat = append(flat, flat[start], flat[start+1])
				}
				if (len(flat)-start)/2 < 4 {
					flat = flat[:start]
					if ri == 0 {
						break
					}
					continue
				}
			}
			ends = append(ends, len(flat))
		}
		if len(ends) > 0 {
			endss = append(endss, ends)
		}
	}
	return geom.NewMultiPolygonFlat(geom.XY, flat, endss)
}

// orient returns a copy of an XY polygon with a counter-clockwise shell and
// clockwise holes.
func orient(p *geom.Polygon) *geom.Polygon {
	flat := append([]float64(nil), p.FlatCoords()...)
	ends := append([]int(nil), p.Ends()...)
	start := 0
	for i, end := range ends {
		ring := flat[start:end]
		cw := xy.SignedArea(geom.XY, ring) > 0
		if (i == 0) == cw {
			reverse(ring)
		}
		start = end
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}

func reverse(ring []float64) {
	for i, j := 0, len(ring)-2; i < j; i, j = i+2, j-2 {
		ring[i], ring[j] = ring[j], ring[i]
		ring[i+1], ring[j+1] = ring[j+1], ring[i+1]
	}
}

// lift copies an XY polygon into layout. The extra ordinates of each vertex
// come from the nearest vertex of src, a flat coordinate slice in layout.
func lift(p *geom.Polygon, layout geom.Layout, src []float64) *geom.Polygon {
	stride := layout.Stride()
	in := p.FlatCoords()
	flat := make([]float64, 0, len(in)/2*stride)
	for i := 0; i+1 < len(in); i += 2 {
		x, y := in[i], in[i+1]
		flat = append(flat, x, y)
		if n := nearest(src, stride, x, y); n >= 0 {
			flat = append(flat, src[n+2:n+stride]...)
		} else {
			for k := 2; k < stride; k++ {
				flat = append(flat, 0)
			}
		}
	}
	ends := make([]int, 0, len(p.Ends()))
	for _, e := range p.Ends() {
		ends = append(ends, e/2*stride)
	}
	return geom.NewPolygonFlat(layout, flat, ends)
}

func nearest(src []float64, stride int, x, y float64) int {
	best, bestD := -1, math.Inf(1)
	for i := 0; i+stride <= len(src); i += stride {
		dx, dy := src[i]-x, src[i+1]-y
		if d := dx*dx + dy*dy; d < bestD {
			best, bestD = i, d
			if d == 0 {
				break
			}
		}
	}
	return best
}

func finite(flat []float64) bool {
	for _, v := range flat {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
