// Package score folds the four component predictions into the
// composite country risk score.
package score

import (
	"errors"
	"fmt"
	"math"

	"github.com/mchmarny/georisk/pkg/model"
)

// Fixed component weights of the overall score.
const (
	WeightPolitical     = 0.25
	WeightConflict      = 0.30
	WeightEconomic      = 0.25
	WeightInstitutional = 0.20

	weightTolerance = 1e-9
)

// Validate confirms the weights form a convex combination. Run once at
// pipeline construction; a failure is a build defect.
func Validate() error {
	sum := WeightPolitical + WeightConflict + WeightEconomic + WeightInstitutional
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("component weights sum to %v, want 1.0", sum)
	}
	return nil
}

// Components groups the per-dimension predictions for one country.
type Components struct {
	Political     *model.Prediction
	Conflict      *model.Prediction
	Economic      *model.Prediction
	Institutional *model.Prediction
}

// Composite is the weighted overall score with its interval.
type Composite struct {
	Overall float64 `json:"overall"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
}

// Compose computes the weighted overall score. The interval bounds are
// the weighted sums of the component bounds, a conservative
// approximation that ignores cross-component correlation.
func Compose(c *Components) (*Composite, error) {
	if c == nil || c.Political == nil || c.Conflict == nil || c.Economic == nil || c.Institutional == nil {
		return nil, errors.New("all four component predictions required")
	}

	return &Composite{
		Overall: weigh(c, func(p *model.Prediction) float64 { return p.Point }),
		Lower:   weigh(c, func(p *model.Prediction) float64 { return p.Lower }),
		Upper:   weigh(c, func(p *model.Prediction) float64 { return p.Upper }),
	}, nil
}

func weigh(c *Components, f func(*model.Prediction) float64) float64 {
	return WeightPolitical*f(c.Political) +
		WeightConflict*f(c.Conflict) +
		WeightEconomic*f(c.Economic) +
		WeightInstitutional*f(c.Institutional)
}
