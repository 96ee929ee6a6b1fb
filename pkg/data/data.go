package data

import (
	"math"

	"github.com/pkg/errors"
)

const (
	// DateFormat is the storage format for all event, feature, and score dates.
	DateFormat = "2006-01-02"
)

// ErrValidation indicates a record that failed normalization (unknown
// country, unparseable date). Callers drop and count these, never abort.
var ErrValidation = errors.New("record validation failed")

// round2 keeps stored classifier outputs at two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
