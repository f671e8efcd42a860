package report

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/vicanso/go-charts/v2"

	"folio/internal/domain"
)

// maxPoints caps the samples per line so long runs stay legible.
const maxPoints = 600

const (
	chartWidth  = 1000
	chartHeight = 600
)

// History is the recorded run data the charts draw from. *monitor.Monitor
// satisfies it.
type History interface {
	ValueSeries() ([]time.Time, []float64)
	AllocationSeries() ([]time.Time, map[string][]float64)
	ContributionSeries() ([]time.Time, []float64, []float64)
	AnnualReturnSeries() ([]int, []float64)
}

var errNoData = errors.New("no data to chart")

// ValueChart draws the portfolio value over time.
func ValueChart(title string, dates []time.Time, values []float64) ([]byte, error) {
	if len(dates) == 0 {
		return nil, errNoData
	}
	idx := sampleIndexes(len(dates))
	return lineChart(title, labels(dates, idx), []string{"Value"}, [][]float64{pick(values, idx)})
}

// AllocationChart draws the fraction of value held in each ticker.
func AllocationChart(dates []time.Time, alloc map[string][]float64) ([]byte, error) {
	if len(dates) == 0 || len(alloc) == 0 {
		return nil, errNoData
	}
	idx := sampleIndexes(len(dates))
	tickers := slices.Sorted(maps.Keys(alloc))
	lines := make([][]float64, len(tickers))
	for i, t := range tickers {
		lines[i] = scale(pick(alloc[t], idx), 100)
	}
	return lineChart("Allocation (%)", labels(dates, idx), tickers, lines)
}

// ContributionChart draws contributed capital against growth above it.
func ContributionChart(dates []time.Time, contributed, growth []float64) ([]byte, error) {
	if len(dates) == 0 {
		return nil, errNoData
	}
	idx := sampleIndexes(len(dates))
	return lineChart("Contributions vs growth", labels(dates, idx),
		[]string{"Contributed", "Growth"}, [][]float64{pick(contributed, idx), pick(growth, idx)})
}

// AnnualReturnChart draws one bar per calendar year, in percent.
func AnnualReturnChart(years []int, returns []float64) ([]byte, error) {
	if len(years) == 0 {
		return nil, errNoData
	}
	x := make([]string, len(years))
	for i, y := range years {
		x[i] = strconv.Itoa(y)
	}
	p, err := charts.BarRender(
		[][]float64{scale(returns, 100)},
		charts.TitleTextOptionFunc("Annual returns (%)"),
		charts.XAxisDataOptionFunc(x),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("rendering annual returns: %w", err)
	}
	return p.Bytes()
}

// IndicatorChart draws a price series with indicator overlays aligned to it.
func IndicatorChart(series domain.Series, overlays map[string][]float64) ([]byte, error) {
	if series.Len() == 0 {
		return nil, errNoData
	}
	names := []string{series.Ticker}
	for name, vs := range overlays {
		if len(vs) != series.Len() {
			return nil, fmt.Errorf("overlay %s has %d points, series has %d", name, len(vs), series.Len())
		}
		names = append(names, name)
	}
	slices.Sort(names[1:])

	idx := sampleIndexes(series.Len())
	lines := [][]float64{pick(series.Values, idx)}
	for _, name := range names[1:] {
		lines = append(lines, pick(overlays[name], idx))
	}
	return lineChart(series.Ticker, labels(series.Dates, idx), names, lines)
}

// WriteCharts renders every run chart as PNG into dir and returns the paths
// written.
func WriteCharts(dir, name string, h History) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dates, values := h.ValueSeries()
	allocDates, alloc := h.AllocationSeries()
	contribDates, contributed, growth := h.ContributionSeries()
	years, returns := h.AnnualReturnSeries()

	jobs := []struct {
		file   string
		render func() ([]byte, error)
	}{
		{"value.png", func() ([]byte, error) { return ValueChart(name, dates, values) }},
		{"allocation.png", func() ([]byte, error) { return AllocationChart(allocDates, alloc) }},
		{"contributions.png", func() ([]byte, error) { return ContributionChart(contribDates, contributed, growth) }},
		{"annual-returns.png", func() ([]byte, error) { return AnnualReturnChart(years, returns) }},
	}

	var paths []string
	for _, j := range jobs {
		buf, err := j.render()
		if errors.Is(err, errNoData) {
			continue
		}
		if err != nil {
			return paths, fmt.Errorf("%s: %w", j.file, err)
		}
		path := filepath.Join(dir, j.file)
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func lineChart(title string, x, names []string, lines [][]float64) ([]byte, error) {
	split := 6
	if len(x) <= 30 {
		split = max(len(x)/3, 3)
	}
	p, err := charts.LineRender(
		lines,
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        x,
			SplitNumber: split,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: names,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", title, err)
	}
	return p.Bytes()
}

// sampleIndexes picks at most maxPoints evenly spaced indexes out of n,
// always keeping the first and last.
func sampleIndexes(n int) []int {
	if n <= maxPoints {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	idx := make([]int, maxPoints)
	step := float64(n-1) / float64(maxPoints-1)
	for i := range idx {
		idx[i] = int(float64(i)*step + 0.5)
	}
	idx[maxPoints-1] = n - 1
	return idx
}

func pick(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		if j < len(values) {
			out[i] = values[j]
		}
	}
	return out
}

func labels(dates []time.Time, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = dates[j].Format("2006-01-02")
	}
	return out
}

func scale(values []float64, k float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * k
	}
	return out
}
