package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mchmarny/georisk/pkg/pipeline"
)

var daemonCmd = &cli.Command{
	Name:   "daemon",
	Usage:  "Run pipeline stages on their configured schedules until interrupted",
	Action: cmdDaemon,
}

func cmdDaemon(c *cli.Context) error {
	structuredLogging()
	cfg := getConfig(c)

	p, err := newPipeline(c)
	if err != nil {
		return err
	}

	s, err := pipeline.NewScheduler(cfg.DB, cfg.Cfg, p)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
