// Package pipeline runs the batch stages that turn raw source data
// into country risk scores: ingest events, ingest indicators,
// classify, build features, score. Stages run in order; within a
// stage the work fans out per country.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mchmarny/georisk/pkg/classify"
	"github.com/mchmarny/georisk/pkg/config"
	"github.com/mchmarny/georisk/pkg/data"
	"github.com/mchmarny/georisk/pkg/feature"
	"github.com/mchmarny/georisk/pkg/fetch"
	"github.com/mchmarny/georisk/pkg/metrics"
	"github.com/mchmarny/georisk/pkg/model"
	"github.com/mchmarny/georisk/pkg/score"
	"github.com/mchmarny/georisk/pkg/source"
)

const classifyBatchSize = 500

// Stage names used in cell errors and metrics labels.
const (
	StageIngest     = "ingest"
	StageIndicators = "indicators"
	StageClassify   = "classify"
	StageFeatures   = "features"
	StageScore      = "score"
)

// Pipeline wires the store, sources, classifier, and model into
// runnable stages. Stage methods are safe to call one at a time.
type Pipeline struct {
	db         *sql.DB
	cfg        *config.Config
	events     []source.EventSource
	indicators []source.IndicatorSource
	classifier *classify.Classifier
	engineer   *feature.Engineer
	now        func() time.Time

	mu    sync.Mutex
	model *model.Model
}

// New builds a pipeline over the given store and sources. The model
// artifact loads lazily on the first scoring run, so ingest-only use
// works without one.
func New(db *sql.DB, cfg *config.Config, events []source.EventSource, indicators []source.IndicatorSource) (*Pipeline, error) {
	if db == nil {
		return nil, errors.New("database required")
	}
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if cfg.Pipeline.Workers < 1 {
		return nil, errors.New("pipeline workers must be positive")
	}
	if err := score.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		db:         db,
		cfg:        cfg,
		events:     events,
		indicators: indicators,
		classifier: classify.New(),
		engineer:   feature.New(db),
		now:        time.Now,
	}, nil
}

type stageFunc func(ctx context.Context, r *Report) error

// Run executes one full batch in stage order and returns its report.
// Per-country failures are recorded on the report and do not stop the
// batch; model version conflicts, configuration problems, and
// cancellation do.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	return p.run(ctx, p.ingestEvents, p.ingestIndicators, p.classifyEvents, p.buildFeatures, p.scoreCountries)
}

// Ingest runs the event and indicator ingest stages.
func (p *Pipeline) Ingest(ctx context.Context) (*Report, error) {
	return p.run(ctx, p.ingestEvents, p.ingestIndicators)
}

// IngestEvents runs only the event ingest stage.
func (p *Pipeline) IngestEvents(ctx context.Context) (*Report, error) {
	return p.run(ctx, p.ingestEvents)
}

// IngestIndicators runs only the indicator ingest stage.
func (p *Pipeline) IngestIndicators(ctx context.Context) (*Report, error) {
	return p.run(ctx, p.ingestIndicators)
}

// ClassifyEvents classifies every event that has no classification
// yet.
func (p *Pipeline) ClassifyEvents(ctx context.Context) (*Report, error) {
	return p.run(ctx, p.classifyEvents)
}

// BuildFeatures computes and stores feature vectors for the current
// date.
func (p *Pipeline) BuildFeatures(ctx context.Context) (*Report, error) {
	return p.run(ctx, p.buildFeatures)
}

// ScoreCountries scores every in-scope country from its stored feature
// vector.
func (p *Pipeline) ScoreCountries(ctx context.Context) (*Report, error) {
	return p.run(ctx, p.scoreCountries)
}

func (p *Pipeline) run(ctx context.Context, stages ...stageFunc) (*Report, error) {
	r := newReport(p.now())
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			p.finish(r)
			return r, err
		}
		if err := stage(ctx, r); err != nil {
			p.finish(r)
			return r, err
		}
	}
	p.finish(r)
	return r, nil
}

func (p *Pipeline) finish(r *Report) {
	r.CompletedAt = p.now().UTC()
	d := r.CompletedAt.Sub(r.StartedAt)
	metrics.BatchDuration.Observe(d.Seconds())
	metrics.LastBatch.Set(float64(r.CompletedAt.Unix()))
	slog.Info("batch completed",
		"id", r.ID,
		"duration", d,
		"events", r.Events.Inserted,
		"indicators", r.IndicatorsUpserted,
		"classified", r.EventsClassified,
		"vectors", r.VectorsBuilt,
		"scores", r.ScoresWritten,
		"cell_errors", len(r.CellErrors),
	)
}

// countries resolves the batch scope: every known country, or the
// configured subset.
func (p *Pipeline) countries() ([]*data.Country, error) {
	list, err := data.ListCountries(p.db)
	if err != nil {
		return nil, err
	}
	if len(p.cfg.Pipeline.Countries) == 0 {
		return list, nil
	}
	want := make(map[string]bool, len(p.cfg.Pipeline.Countries))
	for _, code := range p.cfg.Pipeline.Countries {
		want[strings.ToUpper(strings.TrimSpace(code))] = true
	}
	scoped := make([]*data.Country, 0, len(want))
	for _, c := range list {
		if want[c.Code] {
			scoped = append(scoped, c)
		}
	}
	if len(scoped) == 0 {
		return nil, fmt.Errorf("no known countries in configured scope %v", p.cfg.Pipeline.Countries)
	}
	return scoped, nil
}

func (p *Pipeline) today() string {
	return p.now().UTC().Format(data.DateFormat)
}

func (p *Pipeline) ingestEvents(ctx context.Context, r *Report) error {
	countries, err := p.countries()
	if err != nil {
		return err
	}
	imp, err := data.NewEventImporter(p.db)
	if err != nil {
		return err
	}
	for _, src := range p.events {
		before := imp.Counts()
		if err := p.ingestEventSource(ctx, r, imp, src, countries); err != nil {
			return err
		}
		if _, err := imp.Flush(); err != nil {
			return err
		}
		after := imp.Counts()
		metrics.EventsIngested.WithLabelValues(src.Name()).Add(float64(after.Inserted - before.Inserted))
		metrics.EventsDropped.WithLabelValues("duplicate").Add(float64(after.Duplicates - before.Duplicates))
		metrics.EventsDropped.WithLabelValues("validation").Add(float64(after.Invalid - before.Invalid))
	}
	r.Events = imp.Counts()
	return nil
}

// ingestEventSource fans out one source across the country scope. The
// first unavailable response skips the source for the rest of the
// cycle; other sources still run.
func (p *Pipeline) ingestEventSource(ctx context.Context, r *Report, imp *data.EventImporter, src source.EventSource, countries []*data.Country) error {
	var unavailable atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.Workers)
	for _, c := range countries {
		g.Go(func() error {
			if unavailable.Load() {
				return nil
			}
			events, err := src.Events(gctx, c, p.cfg.Pipeline.EventWindowDays)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if errors.Is(err, fetch.ErrSourceUnavailable) {
					if unavailable.CompareAndSwap(false, true) {
						r.skipSource(src.Name())
						slog.Warn("source unavailable, skipping for this cycle", "source", src.Name(), "error", err)
					}
					return nil
				}
				r.addCellError(c.Code, StageIngest, err)
				metrics.CellsFailed.WithLabelValues(StageIngest).Inc()
				return nil
			}
			for _, ev := range events {
				if err := imp.Add(ev); err != nil && !errors.Is(err, data.ErrValidation) {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Pipeline) ingestIndicators(ctx context.Context, r *Report) error {
	countries, err := p.countries()
	if err != nil {
		return err
	}
	year := p.now().UTC().Year()
	years := source.YearRange{From: year - p.cfg.Pipeline.IndicatorYears, To: year}
	codes := source.IndicatorCodes()
	for _, src := range p.indicators {
		var unavailable atomic.Bool
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.Pipeline.Workers)
		for _, c := range countries {
			g.Go(func() error {
				if unavailable.Load() {
					return nil
				}
				list, err := src.Indicators(gctx, c, codes, years)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					if errors.Is(err, fetch.ErrSourceUnavailable) {
						if unavailable.CompareAndSwap(false, true) {
							r.skipSource(src.Name())
							slog.Warn("source unavailable, skipping for this cycle", "source", src.Name(), "error", err)
						}
						return nil
					}
					r.addCellError(c.Code, StageIndicators, err)
					metrics.CellsFailed.WithLabelValues(StageIndicators).Inc()
					return nil
				}
				n, err := data.SaveIndicators(p.db, list)
				if err != nil {
					return err
				}
				r.addIndicators(n)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) classifyEvents(ctx context.Context, r *Report) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := data.ListUnclassifiedEvents(p.db, classifyBatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		list := make([]*data.ProcessedEvent, 0, len(batch))
		for _, raw := range batch {
			list = append(list, p.classifier.Classify(raw))
		}
		n, err := data.SaveProcessedEvents(p.db, list)
		if err != nil {
			return err
		}
		r.addClassified(n)
		if len(batch) < classifyBatchSize {
			return nil
		}
	}
}

func (p *Pipeline) buildFeatures(ctx context.Context, r *Report) error {
	countries, err := p.countries()
	if err != nil {
		return err
	}
	date := p.today()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.Workers)
	for _, c := range countries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := p.engineer.Build(c, date); err != nil {
				r.addCellError(c.Code, StageFeatures, err)
				metrics.CellsFailed.WithLabelValues(StageFeatures).Inc()
				return nil
			}
			r.addVector()
			return nil
		})
	}
	return g.Wait()
}

func (p *Pipeline) scoreCountries(ctx context.Context, r *Report) error {
	m, err := p.loadModel()
	if err != nil {
		return err
	}
	countries, err := p.countries()
	if err != nil {
		return err
	}
	date := p.today()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.Workers)
	for _, c := range countries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := p.scoreCountry(m, c, date); err != nil {
				r.addCellError(c.Code, StageScore, err)
				metrics.CellsFailed.WithLabelValues(StageScore).Inc()
				return nil
			}
			r.addScore()
			return nil
		})
	}
	return g.Wait()
}

func (p *Pipeline) scoreCountry(m *model.Model, c *data.Country, date string) error {
	v, err := data.GetFeatureVector(p.db, c.Code, date)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("no feature vector for %s on %s", c.Code, date)
	}

	comps := &score.Components{}
	if comps.Political, err = m.Predict(model.ComponentPolitical, v.Features); err != nil {
		return err
	}
	if comps.Conflict, err = m.Predict(model.ComponentConflict, v.Features); err != nil {
		return err
	}
	if comps.Economic, err = m.Predict(model.ComponentEconomic, v.Features); err != nil {
		return err
	}
	if comps.Institutional, err = m.Predict(model.ComponentInstitutional, v.Features); err != nil {
		return err
	}

	composite, err := score.Compose(comps)
	if err != nil {
		return err
	}

	s := &data.RiskScore{
		CountryCode:   c.Code,
		Date:          date,
		Overall:       composite.Overall,
		Political:     comps.Political.Point,
		Conflict:      comps.Conflict.Point,
		Economic:      comps.Economic.Point,
		Institutional: comps.Institutional.Point,
		Lower:         composite.Lower,
		Upper:         composite.Upper,
		ModelVersion:  m.Version(),
	}
	if err := data.SaveRiskScore(p.db, s); err != nil {
		return err
	}
	metrics.CountryRisk.WithLabelValues(c.Code).Set(composite.Overall)
	slog.Debug("country scored", "country", c.Code, "overall", composite.Overall)
	return nil
}

// loadModel loads the configured artifact once and caches it. A
// version conflict aborts the batch rather than writing scores under
// the wrong label.
func (p *Pipeline) loadModel() (*model.Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		return p.model, nil
	}
	m, err := model.Load(p.cfg.Model.Dir, p.cfg.Model.Version)
	if err != nil {
		return nil, err
	}
	p.model = m
	return m, nil
}
