package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"folio/internal/config"
	"folio/internal/domain"
	"folio/internal/indicator"
	"folio/internal/market"
)

// Synthesize extends the target series of spec over the source's history.
// A zero step and nil adjustments fall back to the tuned defaults for the
// target.
func Synthesize(ctx context.Context, src market.SeriesSource, spec config.SyntheticConfig) (domain.Series, error) {
	target, err := src.Series(ctx, spec.Target)
	if err != nil {
		return domain.Series{}, fmt.Errorf("target: %w", err)
	}
	source, err := src.Series(ctx, spec.Source)
	if err != nil {
		return domain.Series{}, fmt.Errorf("source: %w", err)
	}

	params := indicator.DefaultParams(spec.Target)
	if spec.Step > 0 {
		params.Step = spec.Step
	}
	if spec.PosAdj != nil {
		params.PosAdj = *spec.PosAdj
	}
	if spec.NegAdj != nil {
		params.NegAdj = *spec.NegAdj
	}

	out, err := indicator.GenerateTheoretical(target, source, params)
	if err != nil {
		return domain.Series{}, err
	}
	out.Ticker = spec.SyntheticName()
	return out, nil
}

// syntheticSource serves configured synthetic tickers on top of a base
// source, generating each one at most once.
type syntheticSource struct {
	base  market.SeriesSource
	specs map[string]config.SyntheticConfig

	mu    sync.Mutex
	cache map[string]domain.Series
}

// WithSynthetics returns a source that answers the synthetic names of specs
// by generating them from base, and forwards every other ticker to base.
// Generated names shadow stored series of the same name.
func WithSynthetics(base market.SeriesSource, specs []config.SyntheticConfig) market.SeriesSource {
	if len(specs) == 0 {
		return base
	}
	s := &syntheticSource{
		base:  base,
		specs: make(map[string]config.SyntheticConfig, len(specs)),
		cache: make(map[string]domain.Series),
	}
	for _, spec := range specs {
		s.specs[spec.SyntheticName()] = spec
	}
	return s
}

func (s *syntheticSource) Series(ctx context.Context, ticker string) (domain.Series, error) {
	ticker = strings.ToUpper(ticker)
	spec, ok := s.specs[ticker]
	if !ok {
		return s.base.Series(ctx, ticker)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[ticker]; ok {
		return cached, nil
	}
	out, err := Synthesize(ctx, s.base, spec)
	if err != nil {
		return domain.Series{}, fmt.Errorf("synthesizing %s: %w", ticker, err)
	}
	s.cache[ticker] = out
	return out, nil
}
