// Package source implements the upstream providers for events and
// economic indicators.
package source

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mchmarny/georisk/pkg/config"
	"github.com/mchmarny/georisk/pkg/data"
	"github.com/mchmarny/georisk/pkg/fetch"
)

// YearRange bounds an indicator query, inclusive on both ends.
type YearRange struct {
	From int
	To   int
}

// EventSource returns raw events for one country over a trailing
// window of days. Implementations do not write to the database.
type EventSource interface {
	Name() string
	Events(ctx context.Context, country *data.Country, windowDays int) ([]*data.RawEvent, error)
}

// IndicatorSource returns yearly indicator observations for one
// country.
type IndicatorSource interface {
	Name() string
	Indicators(ctx context.Context, country *data.Country, codes []string, years YearRange) ([]*data.Indicator, error)
}

// NewEventSources builds the configured event providers, registering
// each source's budget with the shared limiter.
func NewEventSources(ctx context.Context, cfg *config.Config, homeDir string, limiter *fetch.Limiter) ([]EventSource, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}

	list := make([]EventSource, 0, len(cfg.Sources.Events))
	for _, sc := range cfg.Sources.Events {
		limiter.SetBudget(sc.Name, sc.DailyBudget)
		switch sc.Name {
		case SourceGDELT:
			g, err := NewGDELT(ctx, sc, homeDir, limiter)
			if err != nil {
				return nil, errors.Wrapf(err, "error creating source: %s", sc.Name)
			}
			list = append(list, g)
		default:
			return nil, errors.Errorf("unknown event source: %s", sc.Name)
		}
	}
	return list, nil
}

// NewIndicatorSources builds the configured indicator providers.
func NewIndicatorSources(cfg *config.Config, limiter *fetch.Limiter) ([]IndicatorSource, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}

	list := make([]IndicatorSource, 0, len(cfg.Sources.Indicators))
	for _, sc := range cfg.Sources.Indicators {
		limiter.SetBudget(sc.Name, sc.DailyBudget)
		switch sc.Name {
		case SourceWorldBank:
			w, err := NewWorldBank(sc, limiter)
			if err != nil {
				return nil, errors.Wrapf(err, "error creating source: %s", sc.Name)
			}
			list = append(list, w)
		default:
			return nil, errors.Errorf("unknown indicator source: %s", sc.Name)
		}
	}
	return list, nil
}

func sourceTimeout(sc config.SourceConfig) time.Duration {
	return time.Duration(sc.TimeoutSeconds) * time.Second
}

func sourceBackoff(sc config.SourceConfig) time.Duration {
	return time.Duration(sc.BackoffSeconds) * time.Second
}
