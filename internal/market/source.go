package market

import (
	"context"
	"fmt"
	"strings"

	"folio/internal/domain"
)

// Compile-time interface check.
var _ SeriesSource = StaticSource(nil)

// StaticSource serves series held in memory, keyed by upper-case ticker.
type StaticSource map[string]domain.Series

// Series returns the stored series for ticker.
func (s StaticSource) Series(_ context.Context, ticker string) (domain.Series, error) {
	series, ok := s[strings.ToUpper(ticker)]
	if !ok {
		return domain.Series{}, fmt.Errorf("no series for %s", ticker)
	}
	return series, nil
}
