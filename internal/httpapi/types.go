// Package httpapi provides an HTTP REST API over the run journal, serving
// the same data as the folio-viewer TUI in JSON format.
package httpapi

import (
	"database/sql"

	"folio/internal/domain"
	"folio/internal/store"
	"folio/internal/strategy"
)

// RunJSON is the JSON representation of one journaled run.
type RunJSON struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	CreatedAt     string   `json:"createdAt"`
	Start         string   `json:"start"`
	End           string   `json:"end"`
	Days          int      `json:"days"`
	StartingCash  float64  `json:"startingCash"`
	Contributions float64  `json:"contributions"`
	FinalValue    float64  `json:"finalValue"`
	CAGR          *float64 `json:"cagr"` // null without starting cash
	AdjustedCAGR  *float64 `json:"adjustedCagr"`
	MaxDrawdown   float64  `json:"maxDrawdown"`
	Sharpe        *float64 `json:"sharpe"` // null when undefined
	Sortino       *float64 `json:"sortino"`
	Trades        int      `json:"trades"`
}

// RunDetailJSON adds the stored configuration and markdown report.
type RunDetailJSON struct {
	RunJSON
	Config string `json:"config"`
	Report string `json:"report"`
}

// FillJSON is one executed trade.
type FillJSON struct {
	Date       string  `json:"date"`
	Ticker     string  `json:"ticker"`
	Side       string  `json:"side"`
	Shares     int64   `json:"shares"`
	Price      float64 `json:"price"`
	Commission float64 `json:"commission"`
}

// HistoryJSON is the state of a run at the close of one day.
type HistoryJSON struct {
	Date        string             `json:"date"`
	Value       float64            `json:"value"`
	Contributed float64            `json:"contributed"`
	Growth      float64            `json:"growth"`
	Weights     map[string]float64 `json:"weights,omitempty"`
}

// PresetJSON describes a built-in strategy.
type PresetJSON struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Rebalance   string         `json:"rebalance"`
	Positions   []PositionJSON `json:"positions"`
}

// PositionJSON is one signal-driven allocation rule of a preset.
type PositionJSON struct {
	Ticker     string  `json:"ticker"`
	Ratio      float64 `json:"ratio"`
	BuySignal  string  `json:"buySignal"`
	SellSignal string  `json:"sellSignal"`
}

func convertRun(r store.RunRecord) RunJSON {
	return RunJSON{
		ID:            r.ID,
		Name:          r.Name,
		CreatedAt:     r.CreatedAt,
		Start:         r.StartDate,
		End:           r.EndDate,
		Days:          r.Days,
		StartingCash:  r.StartingCash,
		Contributions: r.Contributions,
		FinalValue:    r.FinalValue,
		CAGR:          nullable(r.CAGR),
		AdjustedCAGR:  nullable(r.AdjustedCAGR),
		MaxDrawdown:   r.MaxDrawdown,
		Sharpe:        nullable(r.Sharpe),
		Sortino:       nullable(r.Sortino),
		Trades:        r.Trades,
	}
}

func nullable(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func convertFill(f domain.Fill) FillJSON {
	return FillJSON{
		Date:       f.Date.Format("2006-01-02"),
		Ticker:     f.Ticker,
		Side:       string(f.Side),
		Shares:     f.Shares,
		Price:      f.Price,
		Commission: f.Commission,
	}
}

func convertHistory(h store.HistoryRecord) HistoryJSON {
	out := HistoryJSON{
		Date:        h.Date().Format("2006-01-02"),
		Value:       h.Value,
		Contributed: h.Contributed,
		Growth:      h.Growth,
	}
	if len(h.Weights) > 0 {
		out.Weights = make(map[string]float64, len(h.Weights))
		for _, w := range h.Weights {
			out.Weights[w.Ticker] = w.Weight
		}
	}
	return out
}

func convertPreset(p strategy.Preset) PresetJSON {
	out := PresetJSON{
		Name:        p.Name(),
		Description: p.Description(),
		Rebalance:   p.Rebalance().String(),
	}
	for _, spec := range p.Positions() {
		out.Positions = append(out.Positions, PositionJSON{
			Ticker:     spec.Ticker,
			Ratio:      spec.Ratio,
			BuySignal:  spec.BuySignal,
			SellSignal: spec.SellSignal,
		})
	}
	return out
}
