// Command folio-data keeps the daily bar store current from Alpaca.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"folio/internal/config"
	"folio/internal/gather"
	"folio/internal/gather/us"
	"folio/internal/store"
	"folio/internal/util"
)

func main() {
	cfgPath := flag.String("config", config.Path(), "path to the YAML configuration")
	once := flag.Bool("once", false, "run a single gathering pass and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatalf("alpaca credentials missing: set APCA_API_KEY_ID and APCA_API_SECRET_KEY")
	}
	job := cfg.Gather.USDaily
	if len(job.Tickers) == 0 {
		log.Fatalf("gather.us_daily.tickers is empty")
	}

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/folio-data-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.Create(logFileName)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()
	util.SetDefault(util.NewLoggerTo(io.MultiWriter(os.Stdout, logFile), cfg.Logging.Level, cfg.Logging.Format))

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	calendar := us.NewCalendarClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)

	gatherer := us.NewDailyBarGatherer(
		us.NewBarsClient(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL),
		pstore,
		func(context.Context) (time.Time, error) {
			return us.LatestFinishedTradingDay(calendar, time.Now())
		},
		us.DailyBarOptions{
			Tickers:         job.Tickers,
			StartDate:       job.StartDate,
			Feed:            cfg.Alpaca.Feed,
			BatchSize:       job.BatchSize,
			MaxWorkers:      job.MaxWorkers,
			RateLimitPerMin: job.RateLimitPerMin,
			MaxRetries:      job.MaxRetries,
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting folio-data", "logFile", logFileName, "tickers", len(job.Tickers), "once", *once)
	if *once {
		if err := gatherer.Run(ctx); err != nil {
			log.Fatalf("gather error: %v", err)
		}
		return
	}

	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Fatalf("loading ET timezone: %v", err)
	}
	schedule, err := gather.ParseSchedule(job.Schedule, et)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := gather.RunDaily(ctx, gatherer, schedule); err != nil && ctx.Err() == nil {
		log.Fatalf("daemon error: %v", err)
	}
	slog.Info("folio-data stopped")
}
