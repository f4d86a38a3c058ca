package geometry

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

var (
	// ErrUnsupportedGeometry is returned for geometry types the backend cannot handle.
	ErrUnsupportedGeometry = eris.New("geometry: unsupported geometry type")
	// ErrUnsupportedBuffer is returned for buffer distances other than zero.
	ErrUnsupportedBuffer = eris.New("geometry: only zero-distance buffers are supported")
	// ErrEmptyGeometry is returned when an operation needs at least one coordinate.
	ErrEmptyGeometry = eris.New("geometry: empty geometry")
	// ErrNonFinite is returned for coordinates that are NaN or infinite.
	ErrNonFinite = eris.New("geometry: non-finite coordinate")
	// ErrRepairFailed is returned when a repaired geometry is still invalid.
	ErrRepairFailed = eris.New("geometry: repair did not produce a valid geometry")
)

// TopologyError reports a geometry whose boundary is self-inconsistent, for
// example a ring that crosses itself. Point locates the problem when known.
type TopologyError struct {
	Reason string
	Point  geom.Coord
}

func (e *TopologyError) Error() string {
	if len(e.Point) >= 2 {
		return fmt.Sprintf("geometry: topology error: %s at (%g %g)", e.Reason, e.Point[0], e.Point[1])
	}
	return "geometry: topology error: " + e.Reason
}

// BackendError reports that the backend could not perform an operation.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("geometry: %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func backendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

// IsTopology reports whether err carries a *TopologyError.
func IsTopology(err error) bool {
	var te *TopologyError
	return errors.As(err, &te)
}

// IsBackend reports whether err carries a *BackendError.
func IsBackend(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
