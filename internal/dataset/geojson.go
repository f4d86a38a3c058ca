package dataset

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/reproject-cli/internal/crs"
)

// WriteOptions control GeoJSON output.
type WriteOptions struct {
	// MaxDecimalDigits limits coordinate precision; negative means unlimited.
	MaxDecimalDigits int
	Indent           bool
}

type header struct {
	Type string       `json:"type"`
	CRS  *geojson.CRS `json:"crs"`
}

type featureJSON struct {
	Type       string            `json:"type"`
	ID         string            `json:"id,omitempty"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties map[string]any    `json:"properties"`
}

type collectionJSON struct {
	Type     string        `json:"type"`
	CRS      *geojson.CRS  `json:"crs,omitempty"`
	Features []featureJSON `json:"features"`
}

// LoadGeoJSON reads a GeoJSON file.
func LoadGeoJSON(path string, override crs.Descriptor) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	ds, err := ReadGeoJSON(f, override)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	return ds, nil
}

// ReadGeoJSON decodes a FeatureCollection, a single Feature or a bare
// geometry. The CRS is the override when set, else the legacy "crs" member,
// else WGS84 longitude/latitude. Features without an id are identified by
// their zero-based position; features with a null geometry are skipped.
func ReadGeoJSON(r io.Reader, override crs.Descriptor) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read geojson")
	}

	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, eris.Wrapf(ErrMalformed, "dataset: %v", err)
	}

	ds := &Dataset{CRS: crs.Geographic}
	if h.CRS != nil {
		d, err := descriptorFromCRS(h.CRS)
		if err != nil {
			return nil, err
		}
		ds.CRS = d
	}
	if !override.IsEmpty() {
		ds.CRS = override
	}

	var features []*geojson.Feature
	switch h.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, eris.Wrapf(ErrMalformed, "dataset: feature collection: %v", err)
		}
		features = fc.Features
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrapf(ErrMalformed, "dataset: feature: %v", err)
		}
		features = []*geojson.Feature{&f}
	case "":
		return nil, eris.Wrap(ErrMalformed, "dataset: missing GeoJSON type")
	default:
		var g geojson.Geometry
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, eris.Wrapf(ErrMalformed, "dataset: geometry: %v", err)
		}
		t, err := g.Decode()
		if err != nil {
			return nil, eris.Wrapf(ErrMalformed, "dataset: geometry: %v", err)
		}
		features = []*geojson.Feature{{Geometry: t}}
	}

	var skipped int
	for i, f := range features {
		if f == nil || f.Geometry == nil {
			skipped++
			continue
		}
		id := f.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		ds.Features = append(ds.Features, Feature{ID: id, Geometry: f.Geometry, Properties: f.Properties})
	}
	if skipped > 0 {
		zap.L().Debug("dataset: skipped features without geometry", zap.Int("skipped", skipped))
	}
	return ds, nil
}

// WriteGeoJSON encodes ds as a FeatureCollection. The CRS is written as a
// named "crs" member, using the EPSG URN when one is known.
func WriteGeoJSON(w io.Writer, ds *Dataset, opts WriteOptions) error {
	var encOpts []geojson.EncodeGeometryOption
	if opts.MaxDecimalDigits >= 0 {
		encOpts = append(encOpts, geojson.EncodeGeometryWithMaxDecimalDigits(opts.MaxDecimalDigits))
	}

	out := collectionJSON{
		Type:     "FeatureCollection",
		CRS:      crsMember(ds.CRS),
		Features: make([]featureJSON, 0, len(ds.Features)),
	}
	for _, f := range ds.Features {
		g, err := geojson.Encode(f.Geometry, encOpts...)
		if err != nil {
			return eris.Wrapf(err, "dataset: encode feature %s", f.ID)
		}
		props := f.Properties
		if props == nil {
			props = map[string]any{}
		}
		out.Features = append(out.Features, featureJSON{Type: "Feature", ID: f.ID, Geometry: g, Properties: props})
	}

	enc := json.NewEncoder(w)
	if opts.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		return eris.Wrap(err, "dataset: write geojson")
	}
	return nil
}

// MarshalGeoJSON is WriteGeoJSON into a byte slice.
func MarshalGeoJSON(ds *Dataset, opts WriteOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteGeoJSON(&buf, ds, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func crsMember(d crs.Descriptor) *geojson.CRS {
	if d.IsEmpty() {
		return nil
	}
	name := d.String()
	if srid := crs.SRID(d); srid != 0 {
		name = "urn:ogc:def:crs:EPSG::" + strconv.Itoa(srid)
	}
	return &geojson.CRS{Type: "name", Properties: map[string]interface{}{"name": name}}
}

func descriptorFromCRS(c *geojson.CRS) (crs.Descriptor, error) {
	if c.Type != "name" {
		return "", eris.Wrapf(crs.ErrUnsupported, "dataset: crs member of type %q", c.Type)
	}
	name, _ := c.Properties["name"].(string)
	d, err := crs.Resolve(name)
	if err != nil {
		return "", eris.Wrap(err, "dataset: crs member")
	}
	return d, nil
}
