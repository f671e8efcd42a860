package strategy

import (
	"github.com/shopspring/decimal"

	"folio/internal/domain"
)

// Policy is a calendar-driven action applied once per step, after signals are
// evaluated and before desired share counts are recomputed. Policies run in
// the order they were given to the Trader.
type Policy interface {
	Name() string
	Apply(t *Trader, flags domain.PeriodFlags) error
}

// Compile-time interface checks.
var _ Policy = Contribution{}
var _ Policy = Rebalance{}

// Contribution deposits Amount into the ledger on every Period boundary.
type Contribution struct {
	Amount decimal.Decimal
	Period domain.Period
}

func (c Contribution) Name() string { return "contribution" }

// Apply deposits the contribution when the period boundary was crossed.
func (c Contribution) Apply(t *Trader, flags domain.PeriodFlags) error {
	if !flags.Has(c.Period) || !c.Amount.IsPositive() {
		return nil
	}
	return t.Contribute(c.Amount)
}

// Rebalance marks every position for re-trading on every Period boundary.
type Rebalance struct {
	Period domain.Period
}

func (r Rebalance) Name() string { return "rebalance" }

// Apply marks all positions when the period boundary was crossed.
func (r Rebalance) Apply(t *Trader, flags domain.PeriodFlags) error {
	if flags.Has(r.Period) {
		t.MarkAll()
	}
	return nil
}

// BuildPolicies returns the policies for an optional contribution schedule
// and an optional rebalance period, contribution first. A PeriodNone period
// disables the corresponding policy.
func BuildPolicies(amount decimal.Decimal, contributionPeriod, rebalancePeriod domain.Period) []Policy {
	var out []Policy
	if contributionPeriod != domain.PeriodNone && amount.IsPositive() {
		out = append(out, Contribution{Amount: amount, Period: contributionPeriod})
	}
	if rebalancePeriod != domain.PeriodNone {
		out = append(out, Rebalance{Period: rebalancePeriod})
	}
	return out
}
