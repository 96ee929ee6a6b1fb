package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mchmarny/georisk/pkg/data"
)

// CellError records one per-country stage failure. Cell failures never
// abort the batch; they surface here and in metrics.
type CellError struct {
	Country string `json:"country" yaml:"country"`
	Stage   string `json:"stage" yaml:"stage"`
	Error   string `json:"error" yaml:"error"`
}

// Report summarizes one batch run.
type Report struct {
	ID                 string                 `json:"id" yaml:"id"`
	StartedAt          time.Time              `json:"started_at" yaml:"started_at"`
	CompletedAt        time.Time              `json:"completed_at" yaml:"completed_at"`
	Events             data.EventImportCounts `json:"events" yaml:"events"`
	IndicatorsUpserted int                    `json:"indicators_upserted" yaml:"indicators_upserted"`
	EventsClassified   int                    `json:"events_classified" yaml:"events_classified"`
	VectorsBuilt       int                    `json:"vectors_built" yaml:"vectors_built"`
	ScoresWritten      int                    `json:"scores_written" yaml:"scores_written"`
	SkippedSources     []string               `json:"skipped_sources,omitempty" yaml:"skipped_sources,omitempty"`
	CellErrors         []*CellError           `json:"cell_errors,omitempty" yaml:"cell_errors,omitempty"`

	mu sync.Mutex
}

func newReport(now time.Time) *Report {
	return &Report{
		ID:        uuid.NewString(),
		StartedAt: now.UTC(),
	}
}

func (r *Report) addCellError(country, stage string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CellErrors = append(r.CellErrors, &CellError{
		Country: country,
		Stage:   stage,
		Error:   err.Error(),
	})
}

// skipSource records a source skipped for this cycle, once per source.
func (r *Report) skipSource(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.SkippedSources {
		if s == name {
			return
		}
	}
	r.SkippedSources = append(r.SkippedSources, name)
}

func (r *Report) addIndicators(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IndicatorsUpserted += n
}

func (r *Report) addClassified(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.EventsClassified += n
}

func (r *Report) addVector() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.VectorsBuilt++
}

func (r *Report) addScore() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ScoresWritten++
}
