package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"folio/internal/domain"
)

// loadWorkers bounds concurrent series reads in LoadAll.
const loadWorkers = 4

var (
	earliest = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	latest   = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
)

// SeriesLoader turns stored bars into closing-price series. It satisfies the
// market's series source contract.
type SeriesLoader struct {
	Store  BarStore
	Market string
}

// NewSeriesLoader creates a loader reading from market in bars.
func NewSeriesLoader(bars BarStore, market string) *SeriesLoader {
	if market == "" {
		market = DefaultMarket
	}
	return &SeriesLoader{Store: bars, Market: market}
}

// Series reads every stored bar of ticker and returns its closes.
func (l *SeriesLoader) Series(ctx context.Context, ticker string) (domain.Series, error) {
	ticker = strings.ToUpper(ticker)
	bars, err := l.Store.ReadBars(ctx, ticker, l.Market, earliest, latest)
	if err != nil {
		return domain.Series{}, fmt.Errorf("reading bars for %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return domain.Series{}, fmt.Errorf("no stored bars for %s", ticker)
	}
	return domain.SeriesFromBars(ticker, bars), nil
}

// LoadAll reads the series of every ticker concurrently.
func (l *SeriesLoader) LoadAll(ctx context.Context, tickers []string) (map[string]domain.Series, error) {
	var mu sync.Mutex
	out := make(map[string]domain.Series, len(tickers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(loadWorkers)
	for _, t := range tickers {
		g.Go(func() error {
			s, err := l.Series(ctx, t)
			if err != nil {
				return err
			}
			mu.Lock()
			out[s.Ticker] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// BarsFromSeries converts a close-only series into bars, for storing
// synthesized histories alongside fetched ones.
func BarsFromSeries(s domain.Series) []domain.Bar {
	bars := make([]domain.Bar, s.Len())
	for i, d := range s.Dates {
		v := s.Values[i]
		bars[i] = domain.Bar{Symbol: s.Ticker, Timestamp: d, Open: v, High: v, Low: v, Close: v}
	}
	return bars
}
