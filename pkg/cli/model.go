package cli

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/mchmarny/georisk/pkg/model"
)

var (
	modelURLFlag = &cli.StringFlag{
		Name:     "url",
		Usage:    "URL of the model artifact to download",
		Required: true,
	}

	modelCmd = &cli.Command{
		Name:            "model",
		HideHelpCommand: true,
		Usage:           "Risk model artifact operations",
		Subcommands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "Show the configured model artifact",
				Action: cmdModelInfo,
			},
			{
				Name:   "fetch",
				Usage:  "Download a model artifact into the model directory",
				Action: cmdModelFetch,
				Flags: []cli.Flag{
					modelURLFlag,
				},
			},
		},
	}
)

type ModelInfo struct {
	Version    string   `json:"version" yaml:"version"`
	TrainedAt  string   `json:"trained_at,omitempty" yaml:"trained_at,omitempty"`
	Path       string   `json:"path" yaml:"path"`
	Components []string `json:"components" yaml:"components"`
}

type ModelFetchResult struct {
	Path string `json:"path" yaml:"path"`
}

func cmdModelInfo(c *cli.Context) error {
	cfg := getConfig(c)

	m, err := model.Load(cfg.Cfg.Model.Dir, cfg.Cfg.Model.Version)
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}

	return encode(&ModelInfo{
		Version:    m.Version(),
		TrainedAt:  m.TrainedAt(),
		Path:       model.ArtifactPath(cfg.Cfg.Model.Dir, m.Version()),
		Components: model.ComponentNames,
	})
}

func cmdModelFetch(c *cli.Context) error {
	cfg := getConfig(c)
	url := c.String(modelURLFlag.Name)

	path, err := model.Fetch(url, cfg.Cfg.Model.Dir)
	if err != nil {
		return fmt.Errorf("fetching model from %s: %w", url, err)
	}

	slog.Info("model artifact downloaded", "path", path)
	return encode(&ModelFetchResult{Path: path})
}
