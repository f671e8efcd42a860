// Package strategy implements the decision engine: signal expressions,
// signal-driven positions, calendar policies and the Trader that turns them
// into trades. It also provides a Registry of named strategy presets.
package strategy

import (
	"sort"

	"folio/internal/domain"
)

// Preset is a named, ready-made set of positions with a default rebalance
// period.
type Preset interface {
	// Name returns the unique identifier for this preset.
	Name() string

	// Description is a one-line summary shown by listings.
	Description() string

	// Positions returns the position specs the preset trades.
	Positions() []PositionSpec

	// Rebalance returns the default rebalance period, PeriodNone for none.
	Rebalance() domain.Period
}

// Registry holds a named collection of presets for lookup and enumeration.
type Registry struct {
	presets map[string]Preset
}

// NewRegistry creates an empty preset Registry.
func NewRegistry() *Registry {
	return &Registry{
		presets: make(map[string]Preset),
	}
}

// Register adds a preset to the registry, keyed by its Name().
func (r *Registry) Register(p Preset) {
	r.presets[p.Name()] = p
}

// Get retrieves a preset by name. The second return value indicates whether
// the preset was found.
func (r *Registry) Get(name string) (Preset, bool) {
	p, ok := r.presets[name]
	return p, ok
}

// List returns a sorted slice of all registered preset names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
