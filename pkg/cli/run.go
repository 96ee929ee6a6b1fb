package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mchmarny/georisk/pkg/fetch"
	"github.com/mchmarny/georisk/pkg/pipeline"
	"github.com/mchmarny/georisk/pkg/source"
)

var (
	ingestCmd = &cli.Command{
		Name:            "ingest",
		Aliases:         []string{"i"},
		HideHelpCommand: true,
		Usage:           "Fetch and store raw events and indicators",
		Subcommands: []*cli.Command{
			{
				Name:   "events",
				Usage:  "Fetch raw events from the configured event sources",
				Action: cmdIngestEvents,
			},
			{
				Name:   "indicators",
				Usage:  "Fetch yearly indicators from the configured indicator sources",
				Action: cmdIngestIndicators,
			},
			{
				Name:   "all",
				Usage:  "Fetch events and indicators",
				Action: cmdIngestAll,
			},
		},
	}

	processCmd = &cli.Command{
		Name:   "process",
		Usage:  "Classify ingested events that have no classification yet",
		Action: cmdProcess,
	}

	featuresCmd = &cli.Command{
		Name:   "features",
		Usage:  "Build per-country feature vectors for today",
		Action: cmdFeatures,
	}

	scoreCmd = &cli.Command{
		Name:   "score",
		Usage:  "Score countries from their stored feature vectors",
		Action: cmdScore,
	}

	runCmd = &cli.Command{
		Name:  "run",
		Usage: "Run the full pipeline once: ingest, classify, features, score",
		UsageText: `georisk run                    # full batch over all countries
   georisk ingest events          # one stage at a time
   georisk process && georisk features && georisk score`,
		Action: cmdRun,
	}
)

// newPipeline builds the pipeline with the configured sources and the
// shared rate limiter.
func newPipeline(c *cli.Context) (*pipeline.Pipeline, error) {
	cfg := getConfig(c)

	limiter := fetch.NewLimiter()
	events, err := source.NewEventSources(c.Context, cfg.Cfg, cfg.HomeDir, limiter)
	if err != nil {
		return nil, fmt.Errorf("building event sources: %w", err)
	}
	indicators, err := source.NewIndicatorSources(cfg.Cfg, limiter)
	if err != nil {
		return nil, fmt.Errorf("building indicator sources: %w", err)
	}

	return pipeline.New(cfg.DB, cfg.Cfg, events, indicators)
}

func runStage(c *cli.Context, fn func(context.Context) (*pipeline.Report, error)) error {
	r, err := fn(c.Context)
	if err != nil {
		return err
	}
	return encode(r)
}

func cmdRun(c *cli.Context) error {
	p, err := newPipeline(c)
	if err != nil {
		return err
	}
	return runStage(c, p.Run)
}

func cmdIngestEvents(c *cli.Context) error {
	p, err := newPipeline(c)
	if err != nil {
		return err
	}
	return runStage(c, p.IngestEvents)
}

func cmdIngestIndicators(c *cli.Context) error {
	p, err := newPipeline(c)
	if err != nil {
		return err
	}
	return runStage(c, p.IngestIndicators)
}

func cmdIngestAll(c *cli.Context) error {
	p, err := newPipeline(c)
	if err != nil {
		return err
	}
	return runStage(c, p.Ingest)
}

func cmdProcess(c *cli.Context) error {
	p, err := newPipeline(c)
	if err != nil {
		return err
	}
	return runStage(c, p.ClassifyEvents)
}

func cmdFeatures(c *cli.Context) error {
	p, err := newPipeline(c)
	if err != nil {
		return err
	}
	return runStage(c, p.BuildFeatures)
}

func cmdScore(c *cli.Context) error {
	p, err := newPipeline(c)
	if err != nil {
		return err
	}
	return runStage(c, p.ScoreCountries)
}
