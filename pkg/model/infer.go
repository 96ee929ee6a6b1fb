package model

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

const (
	scoreMin = 0
	scoreMax = 100

	// 95% interval half-width in standard deviations
	zScore = 1.96
)

// InsufficientDataError marks a country that lacks a feature one of
// the model components requires. The affected cell is skipped; the
// batch carries on.
type InsufficientDataError struct {
	Component string
	Feature   string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: missing feature %s", e.Component, e.Feature)
}

// Prediction is one component's point score and its 95% interval, all
// on the 0..100 scale.
type Prediction struct {
	Point float64 `json:"point"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Predict scores one component against a feature map. The vector is
// assembled in the component's feature order; a missing or null
// feature aborts with InsufficientDataError.
func (m *Model) Predict(component string, features map[string]*float64) (*Prediction, error) {
	c, ok := m.artifact.Components[component]
	if !ok {
		return nil, fmt.Errorf("unknown model component: %s", component)
	}

	x := make([]float64, len(c.Features))
	for i, name := range c.Features {
		v, ok := features[name]
		if !ok || v == nil {
			return nil, &InsufficientDataError{Component: component, Feature: name}
		}
		x[i] = *v
	}

	bagged := make([]float64, len(c.Bagged))
	for i, t := range c.Bagged {
		bagged[i] = t.Predict(x)
	}

	boosted := c.Boosted.Base
	for _, t := range c.Boosted.Trees {
		boosted += t.Predict(x)
	}

	point := clampScore((stat.Mean(bagged, nil) + boosted) / 2)

	// spread of the bagged trees proxies model uncertainty
	sigma := stat.StdDev(bagged, nil)

	return &Prediction{
		Point: point,
		Lower: clampScore(point - zScore*sigma),
		Upper: clampScore(point + zScore*sigma),
	}, nil
}

func clampScore(v float64) float64 {
	if v < scoreMin {
		return scoreMin
	}
	if v > scoreMax {
		return scoreMax
	}
	return v
}
