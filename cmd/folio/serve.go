package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/subcommands"

	"folio/internal/httpapi"
	"folio/internal/metrics"
	"folio/internal/store"
)

type serveCmd struct {
	configFlag
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the run journal over HTTP" }
func (*serveCmd) Usage() string {
	return `folio serve [-config <path>] [-addr :8090]

  Serves saved runs as JSON under /api/runs, their fills and exported
  history, the preset catalog under /api/presets and the latest figures of
  every run name under /metrics.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	c.configFlag.register(f)
	f.StringVar(&c.addr, "addr", ":8090", "listen address")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := c.load()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	// Seed /metrics from the journal, oldest first so the newest run of a
	// name wins.
	m := metrics.New()
	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	for _, r := range slices.Backward(runs) {
		m.ObserveRecord(r)
	}

	srv := httpapi.NewJournalServer(db, cfg.Report.OutputDir, presets(), m, slog.Default())
	httpServer := &http.Server{
		Addr:    c.addr,
		Handler: srv.Handler(),
	}

	go func() {
		slog.Info("journal server listening", "addr", httpServer.Addr, "runs", len(runs))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down journal server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return subcommands.ExitSuccess
}
