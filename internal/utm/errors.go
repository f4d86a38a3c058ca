package utm

import (
	"github.com/rotisserie/eris"
)

var (
	// ErrUndefinedCRS is returned when a dataset has no reference system.
	ErrUndefinedCRS = eris.New("utm: dataset has no coordinate reference system")
	// ErrInvalidZone is returned for zone numbers outside [1, 60].
	ErrInvalidZone = eris.New("utm: zone out of range")
	// ErrEmptyDataset is returned when a zone is requested for zero features.
	ErrEmptyDataset = eris.New("utm: dataset has no features")
	// ErrInvalidCoordinate is returned when a centroid longitude is NaN.
	ErrInvalidCoordinate = eris.New("utm: coordinate is not a number")
)

// IsConfiguration reports whether err stems from how the input or the call
// was set up rather than from the data.
func IsConfiguration(err error) bool {
	return eris.Is(err, ErrUndefinedCRS) || eris.Is(err, ErrInvalidZone)
}

// IsEmptyInput reports whether err stems from an empty dataset.
func IsEmptyInput(err error) bool {
	return eris.Is(err, ErrEmptyDataset)
}
