package dataset

import (
	"archive/zip"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
	"go.uber.org/zap"

	"github.com/sells-group/reproject-cli/internal/crs"
)

// LoadShapefile reads the .shp at path with its sibling .dbf attributes.
// Without an override the CRS comes from the sibling .prj; a missing .prj
// leaves the CRS undefined. Feature IDs are record indices.
func LoadShapefile(path string, override crs.Descriptor) (*Dataset, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	ds := &Dataset{CRS: override}
	if ds.CRS.IsEmpty() {
		d, err := readPRJ(path)
		if err != nil {
			return nil, err
		}
		ds.CRS = d
	}

	// Fields is empty when there is no .dbf.
	fields := reader.Fields()
	var skipped int
	for reader.Next() {
		idx, shape := reader.Shape()
		g := shapeToGeometry(shape)
		if g == nil {
			skipped++
			continue
		}
		props := make(map[string]any, len(fields))
		for i, f := range fields {
			props[strings.TrimRight(f.String(), "\x00")] = attributeValue(f, reader.Attribute(i))
		}
		ds.Features = append(ds.Features, Feature{ID: strconv.Itoa(idx), Geometry: g, Properties: props})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(ErrMalformed, "dataset: shapefile %s: %v", path, err)
	}

	if skipped > 0 {
		zap.L().Debug("dataset: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return ds, nil
}

// LoadShapefileZip extracts a zipped shapefile to a temporary directory and
// loads the first .shp it contains.
func LoadShapefileZip(path string, override crs.Descriptor) (*Dataset, error) {
	dir, err := os.MkdirTemp("", "reproject-shp-*")
	if err != nil {
		return nil, eris.Wrap(err, "dataset: create extract dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	if err := extractZIP(path, dir); err != nil {
		return nil, eris.Wrapf(err, "dataset: extract %s", path)
	}
	shpPath, err := findFileByExt(dir, ".shp")
	if err != nil {
		return nil, eris.Wrapf(ErrMalformed, "dataset: %s: %v", path, err)
	}
	return LoadShapefile(shpPath, override)
}

func attributeValue(f shp.Field, raw string) any {
	val := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if val == "" {
		return nil
	}
	switch f.Fieldtype {
	case 'N', 'F':
		if n, err := strconv.ParseFloat(val, 64); err == nil {
			return n
		}
	case 'L':
		switch strings.ToUpper(val) {
		case "T", "Y":
			return true
		case "F", "N":
			return false
		}
	}
	return val
}

func readPRJ(shpPath string) (crs.Descriptor, error) {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	for _, ext := range []string{".prj", ".PRJ"} {
		data, err := os.ReadFile(base + ext)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", eris.Wrapf(err, "dataset: read %s%s", base, ext)
		}
		d, err := ParsePRJ(string(data))
		if err != nil {
			return "", eris.Wrapf(err, "dataset: %s%s", base, ext)
		}
		return d, nil
	}
	return "", nil
}

// shapeToGeometry converts a shapefile record. Polygons become MultiPolygons
// and polylines MultiLineStrings; unsupported or empty shapes return nil.
func shapeToGeometry(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PointM:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PolyLine:
		return partsToMultiLineString(s.Parts, s.Points)
	case *shp.PolyLineZ:
		return partsToMultiLineString(s.Parts, s.Points)
	case *shp.PolyLineM:
		return partsToMultiLineString(s.Parts, s.Points)
	case *shp.Polygon:
		return partsToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonZ:
		return partsToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonM:
		return partsToMultiPolygon(s.Parts, s.Points)
	default:
		return nil
	}
}

// partRings splits shapefile points into one flat XY ring per part.
func partRings(parts []int32, points []shp.Point) [][]float64 {
	rings := make([][]float64, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start >= end || end > int32(len(points)) {
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for _, p := range points[start:end] {
			flat = append(flat, p.X, p.Y)
		}
		rings = append(rings, flat)
	}
	return rings
}

func partsToMultiLineString(parts []int32, points []shp.Point) geom.T {
	mls := geom.NewMultiLineString(geom.XY)
	for i, flat := range partRings(parts, points) {
		if len(flat) < 4 {
			continue
		}
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("dataset: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// partsToMultiPolygon assembles shapefile rings into polygons. Clockwise
// rings are shells and counter-clockwise rings are holes of the smallest
// shell containing them. Holes without a shell become shells.
func partsToMultiPolygon(parts []int32, points []shp.Point) geom.T {
	type shell struct {
		ring  []float64
		area  float64
		holes [][]float64
	}
	var (
		shells []*shell
		holes  [][]float64
	)
	for _, flat := range partRings(parts, points) {
		if len(flat) < 8 {
			continue
		}
		signed := xy.SignedArea(geom.XY, flat)
		if signed >= 0 {
			shells = append(shells, &shell{ring: flat, area: math.Abs(signed)})
		} else {
			holes = append(holes, flat)
		}
	}

	for _, h := range holes {
		var host *shell
		for _, s := range shells {
			if (host == nil || s.area < host.area) && ringInside(h, s.ring) {
				host = s
			}
		}
		if host == nil {
			shells = append(shells, &shell{ring: h, area: math.Abs(xy.SignedArea(geom.XY, h))})
			continue
		}
		host.holes = append(host.holes, h)
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, s := range shells {
		flat := append([]float64(nil), s.ring...)
		ends := []int{len(flat)}
		for _, h := range s.holes {
			flat = append(flat, h...)
			ends = append(ends, len(flat))
		}
		if err := mp.Push(geom.NewPolygonFlat(geom.XY, flat, ends)); err != nil {
			zap.L().Debug("dataset: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func ringInside(inner, outer []float64) bool {
	for i := 0; i+1 < len(inner); i += 2 {
		switch xy.LocatePointInRing(geom.XY, geom.Coord{inner[i], inner[i+1]}, outer) {
		case location.Interior:
			return true
		case location.Exterior:
			return false
		}
	}
	return false
}

// extractZIP extracts the files of a ZIP archive flat into destDir.
func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := extractFile(f, filepath.Join(destDir, filepath.Base(f.Name))); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "open zip entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "create %s", dest)
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return eris.Wrapf(err, "extract %s", f.Name)
	}
	return nil
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}
