// Package dataset holds the in-memory feature collection passed between
// pipeline stages, together with its GeoJSON, shapefile and EWKB codecs.
package dataset

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/reproject-cli/internal/crs"
	"github.com/sells-group/reproject-cli/internal/geometry"
)

var (
	// ErrUnsupportedFormat is returned by Load for unknown file extensions.
	ErrUnsupportedFormat = eris.New("dataset: unsupported file format")
	// ErrMalformed is returned for input that cannot be decoded.
	ErrMalformed = eris.New("dataset: malformed input")
)

// Feature is one record of a dataset.
type Feature struct {
	ID         string
	Geometry   geom.T
	Properties map[string]any
}

// Dataset is an ordered collection of features whose geometries are all
// expressed in CRS. An empty CRS means the reference system is unknown.
type Dataset struct {
	CRS      crs.Descriptor
	Features []Feature
}

// Len returns the number of features.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Features)
}

// IDs returns the feature IDs in dataset order.
func (d *Dataset) IDs() []string {
	ids := make([]string, 0, d.Len())
	for _, f := range d.Features {
		ids = append(ids, f.ID)
	}
	return ids
}

// Clone returns a copy of d with cloned geometries and shallow-copied
// property maps.
func (d *Dataset) Clone() (*Dataset, error) {
	out := &Dataset{CRS: d.CRS, Features: make([]Feature, 0, len(d.Features))}
	for _, f := range d.Features {
		g, err := geometry.Clone(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: clone feature %s", f.ID)
		}
		out.Features = append(out.Features, f.WithGeometry(g))
	}
	return out, nil
}

// WithGeometry returns a copy of f carrying g.
func (f Feature) WithGeometry(g geom.T) Feature {
	var props map[string]any
	if f.Properties != nil {
		props = make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = v
		}
	}
	return Feature{ID: f.ID, Geometry: g, Properties: props}
}

// Load reads a dataset from path, choosing the decoder from the file
// extension. A non-empty override replaces any CRS found in the file.
func Load(path string, override crs.Descriptor) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return LoadGeoJSON(path, override)
	case ".shp":
		return LoadShapefile(path, override)
	case ".zip":
		return LoadShapefileZip(path, override)
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "dataset: %s", path)
	}
}
