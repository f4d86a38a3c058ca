package dataset

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/reproject-cli/internal/geometry"
)

// EncodeEWKB converts a geometry to little-endian EWKB carrying srid. The
// input geometry is not modified.
func EncodeEWKB(g geom.T, srid int) ([]byte, error) {
	c, err := geometry.Clone(g)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: encode EWKB")
	}
	if _, err := geom.SetSRID(c, srid); err != nil {
		return nil, eris.Wrap(err, "dataset: set SRID")
	}

	data, err := ewkb.Marshal(c, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: encode EWKB")
	}
	return data, nil
}
