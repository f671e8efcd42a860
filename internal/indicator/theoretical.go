package indicator

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"folio/internal/domain"
)

// DefaultStep is the bucket width used when Params.Step is unset.
const DefaultStep = 0.00005

// ErrNoOverlap is returned when target and source share fewer than two dates.
var ErrNoOverlap = errors.New("target and source do not overlap")

// Params tunes theoretical series generation. PosAdj is added to the bucket
// leverage on up days of the source, NegAdj on down days.
type Params struct {
	Step   float64 `yaml:"step"`
	PosAdj float64 `yaml:"pos_adj"`
	NegAdj float64 `yaml:"neg_adj"`
}

// Adjustments observed for instruments that are commonly extended.
var knownParams = map[string]Params{
	"UPRO": {Step: DefaultStep, PosAdj: 0, NegAdj: 0},
	"TMF":  {Step: DefaultStep, PosAdj: 0.01, NegAdj: 0.05},
}

// DefaultParams returns the tuned parameters for ticker, or zero adjustments
// with the default step.
func DefaultParams(ticker string) Params {
	if p, ok := knownParams[strings.ToUpper(ticker)]; ok {
		return p
	}
	return Params{Step: DefaultStep}
}

// ---------------------------------------------------------------------------
// Stepped average lookup
// ---------------------------------------------------------------------------

// SteppedAvgLookup buckets samples by key into fixed-width cells and keeps a
// running mean of the associated values per cell. A sample lands in the first
// cell whose upper bound is strictly greater than its key. Finite bounds run
// from floor(min/step)*step up to, but excluding, floor(max/step)*step; one
// unbounded cell above them catches the largest samples.
type SteppedAvgLookup struct {
	step    float64
	bounds  []float64
	means   []float64
	counts  []int
	overall float64
	total   int
}

// NewSteppedAvgLookup builds the lookup from parallel key and value slices.
func NewSteppedAvgLookup(step float64, keys, values []float64) *SteppedAvgLookup {
	l := &SteppedAvgLookup{step: step}
	if len(keys) == 0 {
		l.bounds = []float64{math.Inf(1)}
		l.means = []float64{0}
		l.counts = []int{0}
		l.prune()
		return l
	}

	if step > 0 {
		lo, hi := keys[0], keys[0]
		for _, k := range keys {
			lo = math.Min(lo, k)
			hi = math.Max(hi, k)
		}
		// The top cell is unbounded, so the largest sampled moves share it
		// with anything bigger seen later.
		first := int(math.Floor(lo / step))
		last := int(math.Floor(hi / step))
		for i := first; i < last; i++ {
			l.bounds = append(l.bounds, float64(i)*step)
		}
	}
	l.bounds = append(l.bounds, math.Inf(1))
	l.means = make([]float64, len(l.bounds))
	l.counts = make([]int, len(l.bounds))

	for i, k := range keys {
		l.add(k, values[i])
	}
	l.prune()
	return l
}

func (l *SteppedAvgLookup) find(key float64) int {
	return sort.Search(len(l.bounds), func(i int) bool { return l.bounds[i] > key })
}

func (l *SteppedAvgLookup) add(key, value float64) {
	i := l.find(key)
	if i == len(l.bounds) {
		i = len(l.bounds) - 1
	}
	l.counts[i]++
	l.means[i] += (value - l.means[i]) / float64(l.counts[i])
	l.total++
	l.overall += (value - l.overall) / float64(l.total)
}

// prune drops cells that received no samples.
func (l *SteppedAvgLookup) prune() {
	n := 0
	for i := range l.bounds {
		if l.counts[i] == 0 {
			continue
		}
		l.bounds[n], l.means[n], l.counts[n] = l.bounds[i], l.means[i], l.counts[i]
		n++
	}
	l.bounds, l.means, l.counts = l.bounds[:n], l.means[:n], l.counts[:n]
}

// Get returns the mean of the first populated cell whose upper bound exceeds
// key, or the mean over all samples when none does.
func (l *SteppedAvgLookup) Get(key float64) float64 {
	i := l.find(key)
	if i == len(l.bounds) {
		return l.overall
	}
	return l.means[i]
}

// Len returns the number of populated cells.
func (l *SteppedAvgLookup) Len() int { return len(l.bounds) }

// ---------------------------------------------------------------------------
// Movement comparison and synthesis
// ---------------------------------------------------------------------------

// Movement holds day-over-day fractional changes of two series over the dates
// they share.
type Movement struct {
	Dates  []time.Time
	Target []float64
	Source []float64
}

// CompareMovement computes day-over-day changes of target and source over
// their common dates. Dates[i] is the later day of the pair that produced
// change i.
func CompareMovement(target, source domain.Series) Movement {
	var common []int2
	i, j := 0, 0
	for i < target.Len() && j < source.Len() {
		switch {
		case target.Dates[i].Before(source.Dates[j]):
			i++
		case source.Dates[j].Before(target.Dates[i]):
			j++
		default:
			common = append(common, int2{i, j})
			i++
			j++
		}
	}

	var m Movement
	for k := 1; k < len(common); k++ {
		p, c := common[k-1], common[k]
		tPrev, sPrev := target.Values[p.a], source.Values[p.b]
		if tPrev == 0 || sPrev == 0 {
			continue
		}
		m.Dates = append(m.Dates, target.Dates[c.a])
		m.Target = append(m.Target, target.Values[c.a]/tPrev-1)
		m.Source = append(m.Source, source.Values[c.b]/sPrev-1)
	}
	return m
}

type int2 struct{ a, b int }

// Leverage returns the (source change, target/source ratio) samples, skipping
// days where the source did not move.
func (m Movement) Leverage() (changes, ratios []float64) {
	for i, s := range m.Source {
		if s == 0 {
			continue
		}
		changes = append(changes, s)
		ratios = append(ratios, m.Target[i]/s)
	}
	return changes, ratios
}

// GenerateTheoretical extends target over the full date range of source.
// Dates covered by target keep its real prices. Earlier dates are
// extrapolated backwards from target's first price and later dates forwards
// from its last price, scaling each source move by the leverage observed for
// moves of that size.
func GenerateTheoretical(target, source domain.Series, p Params) (domain.Series, error) {
	if target.Len() == 0 || source.Len() == 0 {
		return domain.Series{}, fmt.Errorf("generating %s from %s: %w", target.Ticker, source.Ticker, ErrNoOverlap)
	}
	if p.Step <= 0 {
		p.Step = DefaultStep
	}

	changes, ratios := CompareMovement(target, source).Leverage()
	if len(changes) == 0 {
		return domain.Series{}, fmt.Errorf("generating %s from %s: %w", target.Ticker, source.Ticker, ErrNoOverlap)
	}
	lut := NewSteppedAvgLookup(p.Step, changes, ratios)

	factor := func(change float64) float64 {
		adj := p.NegAdj
		if change >= 0 {
			adj = p.PosAdj
		}
		return change*(lut.Get(change)+adj) + 1
	}

	anchor, _ := source.Index(target.First())
	tail, ok := source.Index(target.Last())
	if ok {
		tail++
	}

	before := make([]float64, anchor)
	next := target.Values[0]
	for j := anchor - 1; j >= 0; j-- {
		prev, cur := source.Values[j], source.Values[j+1]
		if prev == 0 {
			return domain.Series{}, fmt.Errorf("generating %s: zero source price on %s", target.Ticker, source.Dates[j].Format("2006-01-02"))
		}
		f := factor(cur/prev - 1)
		if f == 0 {
			return domain.Series{}, fmt.Errorf("generating %s: degenerate move on %s", target.Ticker, source.Dates[j+1].Format("2006-01-02"))
		}
		next /= f
		before[j] = next
	}

	out := domain.Series{
		Ticker: target.Ticker,
		Dates:  make([]time.Time, 0, anchor+target.Len()+source.Len()-tail),
		Values: make([]float64, 0, anchor+target.Len()+source.Len()-tail),
	}
	out.Dates = append(out.Dates, source.Dates[:anchor]...)
	out.Values = append(out.Values, before...)
	out.Dates = append(out.Dates, target.Dates...)
	out.Values = append(out.Values, target.Values...)

	last := target.Values[target.Len()-1]
	for j := max(tail, 1); j < source.Len(); j++ {
		prev := source.Values[j-1]
		if prev == 0 {
			return domain.Series{}, fmt.Errorf("generating %s: zero source price on %s", target.Ticker, source.Dates[j-1].Format("2006-01-02"))
		}
		last *= factor(source.Values[j]/prev - 1)
		out.Dates = append(out.Dates, source.Dates[j])
		out.Values = append(out.Values, last)
	}
	return out, nil
}
