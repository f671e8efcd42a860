// Package us gathers daily bars for US-listed tickers from Alpaca.
package us

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"folio/internal/domain"
	"folio/internal/gather"
	"folio/internal/store"
	"folio/internal/util"
)

// Compile-time interface check.
var _ gather.Gatherer = (*DailyBarGatherer)(nil)

// BarsClient is the part of the Alpaca market-data API used to fetch daily
// bars. *marketdata.Client satisfies it.
type BarsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// BarSink stores fetched bars and reports how far each ticker already goes.
// *store.ParquetStore satisfies it.
type BarSink interface {
	WriteBars(ctx context.Context, bars []domain.Bar) error
	LatestBarTime(symbol, market string) (time.Time, bool, error)
}

// NewBarsClient creates an Alpaca market-data client.
func NewBarsClient(apiKey, apiSecret, dataURL string) *marketdata.Client {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return marketdata.NewClient(opts)
}

// DailyBarOptions tunes a DailyBarGatherer.
type DailyBarOptions struct {
	Tickers         []string
	StartDate       string // first date fetched for a ticker with no stored bars
	Feed            string // sip or iex
	BatchSize       int    // tickers per API call
	MaxWorkers      int    // concurrent API calls
	RateLimitPerMin int
	MaxRetries      int
	ProgressDir     string // where resume state is kept
}

// ---------------------------------------------------------------------------
// DailyBarGatherer
// ---------------------------------------------------------------------------

// DailyBarGatherer fetches split and dividend adjusted daily bars for a
// fixed ticker list and appends them to the bar store. Each ticker resumes
// from the day after its newest stored bar.
type DailyBarGatherer struct {
	client     BarsClient
	sink       BarSink
	endDate    func(ctx context.Context) (time.Time, error)
	opts       DailyBarOptions
	limiter    *util.RateLimiter
	breaker    *gobreaker.CircuitBreaker
	retryDelay time.Duration
	log        *slog.Logger
}

// NewDailyBarGatherer wires a gatherer. endDate returns the last date to
// fetch, normally the latest finished trading day.
func NewDailyBarGatherer(client BarsClient, sink BarSink, endDate func(ctx context.Context) (time.Time, error), opts DailyBarOptions) *DailyBarGatherer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	if opts.Feed == "" {
		opts.Feed = "sip"
	}

	log := slog.Default().With("gatherer", "us-daily")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "alpaca-bars",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &DailyBarGatherer{
		client:     client,
		sink:       sink,
		endDate:    endDate,
		opts:       opts,
		limiter:    util.NewRateLimiter(opts.RateLimitPerMin),
		breaker:    breaker,
		retryDelay: time.Second,
		log:        log,
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "us-daily" }

// batch is one GetMultiBars call.
type batch struct {
	tickers []string
	rng     gather.DateRange
}

// Run fetches every configured ticker up to the end date. A pass that already
// completed for the same end date is a no-op. Failed batches are logged and
// reported in the returned error; the pass is then not marked complete so
// the next run retries them.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	start, err := domain.ParseDay(g.opts.StartDate)
	if err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	end, err := g.endDate(ctx)
	if err != nil {
		return fmt.Errorf("determining end date: %w", err)
	}
	end = domain.Day(end)
	endStr := end.Format("2006-01-02")

	tracker, err := newProgressTracker(g.progressDir())
	if err != nil {
		return err
	}
	if last := tracker.LastCompleted(); last == endStr {
		g.log.Info("already completed", "endDate", endStr)
		return nil
	} else if last != "" {
		if err := tracker.Reset(); err != nil {
			return fmt.Errorf("resetting progress: %w", err)
		}
	}

	batches, err := g.plan(start, end, tracker)
	if err != nil {
		return err
	}
	g.log.Info("starting us-daily", "endDate", endStr, "tickers", len(g.opts.Tickers), "batches", len(batches))

	var (
		written  atomic.Int64
		failed   atomic.Int64
		runStart = time.Now()
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.MaxWorkers)
	for i, b := range batches {
		eg.Go(func() error {
			bars, err := g.fetch(ctx, b)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed.Add(1)
				g.log.Error("batch fetch failed", "batch", fmt.Sprintf("%d/%d", i+1, len(batches)), "range", b.rng.String(), "err", err)
				return nil
			}
			if len(bars) > 0 {
				if err := g.sink.WriteBars(ctx, bars); err != nil {
					return fmt.Errorf("writing bars: %w", err)
				}
			}
			if err := tracker.MarkEmpty(missing(b.tickers, bars)); err != nil {
				g.log.Error("marking empty failed", "err", err)
			}
			written.Add(int64(len(bars)))
			g.log.Info("batch done",
				"batch", fmt.Sprintf("%d/%d", i+1, len(batches)),
				"bars", len(bars),
				"elapsed", time.Since(runStart).Round(time.Second),
			)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d batches failed", n, len(batches))
	}
	if err := tracker.MarkCompleted(endStr); err != nil {
		return fmt.Errorf("marking completed: %w", err)
	}
	g.log.Info("complete", "bars", written.Load(), "elapsed", time.Since(runStart).Round(time.Second))
	return nil
}

func (g *DailyBarGatherer) progressDir() string {
	if g.opts.ProgressDir != "" {
		return g.opts.ProgressDir
	}
	if ps, ok := g.sink.(*store.ParquetStore); ok {
		return filepath.Join(ps.DataDir, store.DefaultMarket, "daily")
	}
	return "."
}

// plan groups tickers by the first date they still need so that every
// batch shares one request range. Up-to-date and known-empty tickers are
// skipped.
func (g *DailyBarGatherer) plan(start, end time.Time, tracker *progressTracker) ([]batch, error) {
	byStart := make(map[time.Time][]string)
	for _, raw := range g.opts.Tickers {
		ticker := strings.ToUpper(strings.TrimSpace(raw))
		if ticker == "" || tracker.IsEmpty(ticker) {
			continue
		}
		from := start
		latest, ok, err := g.sink.LatestBarTime(ticker, store.DefaultMarket)
		if err != nil {
			return nil, fmt.Errorf("latest bar for %s: %w", ticker, err)
		}
		if ok {
			from = domain.Day(latest).AddDate(0, 0, 1)
		}
		if end.Before(from) {
			continue
		}
		byStart[from] = append(byStart[from], ticker)
	}

	starts := make([]time.Time, 0, len(byStart))
	for s := range byStart {
		starts = append(starts, s)
	}
	slices.SortFunc(starts, func(a, b time.Time) int { return a.Compare(b) })

	var batches []batch
	for _, s := range starts {
		tickers := slices.Compact(slices.Sorted(slices.Values(byStart[s])))
		for chunk := range slices.Chunk(tickers, g.opts.BatchSize) {
			batches = append(batches, batch{tickers: chunk, rng: gather.DateRange{Start: s, End: end}})
		}
	}
	return batches, nil
}

// fetch runs one rate-limited, retried GetMultiBars call behind the circuit
// breaker. An open breaker is not retried.
func (g *DailyBarGatherer) fetch(ctx context.Context, b batch) ([]domain.Bar, error) {
	var bars []domain.Bar
	err := util.Retry(ctx, g.opts.MaxRetries, g.retryDelay, func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		res, err := g.breaker.Execute(func() (interface{}, error) {
			return g.client.GetMultiBars(b.tickers, marketdata.GetBarsRequest{
				TimeFrame:  marketdata.OneDay,
				Adjustment: marketdata.All,
				Start:      b.rng.Start,
				End:        b.rng.End.AddDate(0, 0, 1),
				Feed:       g.opts.Feed,
			})
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return util.Permanent(err)
		}
		if err != nil {
			return fmt.Errorf("GetMultiBars: %w", err)
		}
		bars = toBars(res.(map[string][]marketdata.Bar), b.rng)
		return nil
	})
	return bars, err
}

// toBars converts an Alpaca response, dropping anything outside rng.
func toBars(multi map[string][]marketdata.Bar, rng gather.DateRange) []domain.Bar {
	var bars []domain.Bar
	for symbol, abs := range multi {
		for _, ab := range abs {
			day := domain.Day(ab.Timestamp)
			if day.Before(rng.Start) || day.After(rng.End) {
				continue
			}
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  ab.Timestamp,
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars
}

// missing returns the tickers of the batch that have no bar.
func missing(tickers []string, bars []domain.Bar) []string {
	hit := make(map[string]struct{}, len(tickers))
	for _, b := range bars {
		hit[b.Symbol] = struct{}{}
	}
	var out []string
	for _, t := range tickers {
		if _, ok := hit[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}
