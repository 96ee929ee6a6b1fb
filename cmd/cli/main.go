package main

import (
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/mchmarny/georisk/pkg/cli"
)

func main() {
	// optional .env for source API keys and overrides
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cli.Execute()
}
