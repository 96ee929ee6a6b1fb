package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mchmarny/georisk/pkg/config"
	"github.com/mchmarny/georisk/pkg/data"
)

// Task names key the task_state table. Renaming one orphans its
// recorded last run.
const (
	TaskEvents     = "events"
	TaskIndicators = "indicators"
	TaskClassify   = "classify"
	TaskFeatures   = "features"
	TaskScore      = "score"
)

type task struct {
	name     string
	schedule cron.Schedule
	run      func(context.Context) error
}

// Scheduler fires pipeline stages on their cron schedules. Last run
// times persist in the database, so a task overdue at startup fires on
// the first pass after a restart.
type Scheduler struct {
	db    *sql.DB
	tick  time.Duration
	now   func() time.Time
	tasks []*task
}

// NewScheduler parses the configured cron expressions once and binds
// each task to its pipeline stage.
func NewScheduler(db *sql.DB, cfg *config.Config, p *Pipeline) (*Scheduler, error) {
	if db == nil {
		return nil, errors.New("database required")
	}
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if p == nil {
		return nil, errors.New("pipeline required")
	}

	s := &Scheduler{
		db:   db,
		tick: time.Duration(cfg.Schedule.TickSeconds) * time.Second,
		now:  time.Now,
	}
	if s.tick <= 0 {
		s.tick = time.Minute
	}

	specs := []struct {
		name string
		expr string
		run  func(context.Context) (*Report, error)
	}{
		{TaskEvents, cfg.Schedule.Events, p.IngestEvents},
		{TaskIndicators, cfg.Schedule.Indicators, p.IngestIndicators},
		{TaskClassify, cfg.Schedule.Classify, p.ClassifyEvents},
		{TaskFeatures, cfg.Schedule.Features, p.BuildFeatures},
		{TaskScore, cfg.Schedule.Score, p.ScoreCountries},
	}
	for _, spec := range specs {
		sched, err := cron.ParseStandard(spec.expr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s schedule %q: %w", spec.name, spec.expr, err)
		}
		run := spec.run
		s.tasks = append(s.tasks, &task{
			name:     spec.name,
			schedule: sched,
			run: func(ctx context.Context) error {
				_, err := run(ctx)
				return err
			},
		})
	}
	return s, nil
}

// Start blocks until ctx is done, checking for due tasks every tick.
// Due tasks run serially in task order, and a running task completes
// its current work unit before Start returns.
func (s *Scheduler) Start(ctx context.Context) error {
	slog.Info("scheduler started", "tick", s.tick, "tasks", len(s.tasks))
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	// overdue tasks fire right away, before the first tick
	if err := s.runDue(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runDue(ctx); err != nil {
				return err
			}
		}
	}
}

// runDue fires every due task in order. A failed task is logged and
// retried at its next due time, not on the next tick; only
// cancellation and task state errors stop the pass.
func (s *Scheduler) runDue(ctx context.Context) error {
	for _, t := range s.tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		due, err := s.due(t)
		if err != nil {
			return err
		}
		if !due {
			continue
		}
		started := s.now()
		slog.Info("task started", "task", t.name)
		if err := t.run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("task failed", "task", t.name, "error", err)
		}
		if err := data.SaveTaskRun(s.db, t.name, started); err != nil {
			return err
		}
	}
	return nil
}

// due reports whether the task's next scheduled time after its last
// recorded run has already passed. A task that never ran is due.
func (s *Scheduler) due(t *task) (bool, error) {
	last, err := data.GetTaskRun(s.db, t.name)
	if err != nil {
		return false, err
	}
	if last.IsZero() {
		return true, nil
	}
	return !t.schedule.Next(last).After(s.now()), nil
}
