package cli

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
)

var (
	addressFlag = &cli.StringFlag{
		Name:  "address",
		Usage: "Listen address as host:port (overrides config)",
	}

	serverCmd = &cli.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start the read-only scores API server",
		Action:  cmdStartServer,
		Flags: []cli.Flag{
			addressFlag,
		},
	}
)

func cmdStartServer(c *cli.Context) error {
	structuredLogging()
	cfg := getConfig(c)

	address := c.String(addressFlag.Name)
	if address == "" {
		address = cfg.Cfg.Server.Address
	}

	s := &http.Server{
		Addr:           address,
		Handler:        makeRouter(cfg.DB),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("error starting server", "error", err)
		}
	}()

	slog.Info("server started", "address", address)

	<-done

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	return nil
}

func makeRouter(db *sql.DB) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/countries", countriesAPIHandler(db))
	mux.HandleFunc("GET /api/v1/scores/{country}", latestScoreAPIHandler(db))
	mux.HandleFunc("GET /api/v1/scores/{country}/history", scoreHistoryAPIHandler(db))
	mux.HandleFunc("GET /api/v1/summary/{country}", summaryAPIHandler(db))
	mux.HandleFunc("GET /api/v1/events/{country}/series", eventSeriesAPIHandler(db))
	mux.HandleFunc("GET /healthz", healthAPIHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}
