// Package taxengine compares the old and new income-tax regimes for a single set of inputs.
// The engine is pure: it holds no state, performs no I/O and never returns an error.
package taxengine

import (
	"github.com/shopspring/decimal"
)

// Regime identifies one of the two mutually exclusive tax computation methods.
type Regime string

const (
	RegimeOld Regime = "Old Regime"
	RegimeNew Regime = "New Regime"
)

// String returns the display label of the regime
func (r Regime) String() string {
	return string(r)
}

// IsValid reports whether r is a known regime
func (r Regime) IsValid() bool {
	return r == RegimeOld || r == RegimeNew
}

// Input holds the already-coerced, non-negative calculation inputs.
type Input struct {
	AnnualIncome    decimal.Decimal
	Investments80C  decimal.Decimal
	RentPaid        decimal.Decimal
	OtherDeductions decimal.Decimal
}

// RegimeResult is the outcome of one regime.
type RegimeResult struct {
	TaxableIncome decimal.Decimal
	Tax           decimal.Decimal
}

// Result is the comparison of both regimes.
type Result struct {
	Old            RegimeResult
	New            RegimeResult
	Recommendation Regime
	Savings        decimal.Decimal
	FinalTax       decimal.Decimal
}

var (
	oldStandardDeduction = decimal.NewFromInt(50000)
	newStandardDeduction = decimal.NewFromInt(75000)
	newRebateLimit       = decimal.NewFromInt(700000)

	basicSalaryRatio = decimal.RequireFromString("0.5")
	hraRatio         = decimal.RequireFromString("0.4")
	rentBasicRatio   = decimal.RequireFromString("0.1")
)

// band is one progressive slab: income above Threshold is taxed at Rate.
type band struct {
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

// oldSlabs are evaluated by locating the highest threshold exceeded and adding the tax
// carried from the lower slabs.
var oldSlabs = []struct {
	band
	Carried decimal.Decimal
}{
	{band{decimal.NewFromInt(1000000), decimal.RequireFromString("0.30")}, decimal.NewFromInt(112500)},
	{band{decimal.NewFromInt(500000), decimal.RequireFromString("0.20")}, decimal.NewFromInt(12500)},
	{band{decimal.NewFromInt(250000), decimal.RequireFromString("0.05")}, decimal.Zero},
}

// newBands are evaluated top-down; each consumes the income above its threshold and
// clamps the running total to the threshold.
var newBands = []band{
	{decimal.NewFromInt(1500000), decimal.RequireFromString("0.30")},
	{decimal.NewFromInt(1200000), decimal.RequireFromString("0.20")},
	{decimal.NewFromInt(1000000), decimal.RequireFromString("0.15")},
	{decimal.NewFromInt(700000), decimal.RequireFromString("0.10")},
	{decimal.NewFromInt(300000), decimal.RequireFromString("0.05")},
}

// Compute runs both regimes and recommends the cheaper one. Ties favor the new regime.
func Compute(in Input) Result {
	in = sanitize(in)

	oldResult := computeOld(in)
	newResult := computeNew(in)

	recommendation := RegimeNew
	if oldResult.Tax.LessThan(newResult.Tax) {
		recommendation = RegimeOld
	}

	return Result{
		Old:            oldResult,
		New:            newResult,
		Recommendation: recommendation,
		Savings:        oldResult.Tax.Sub(newResult.Tax).Abs(),
		FinalTax:       decimal.Min(oldResult.Tax, newResult.Tax),
	}
}

// HRAExemption returns the house rent allowance exemption under the fixed salary split:
// basic = 50% of income, HRA received = 40% of basic.
func HRAExemption(income, rentPaid decimal.Decimal) decimal.Decimal {
	basic := income.Mul(basicSalaryRatio)
	received := basic.Mul(hraRatio)
	rentOverBasic := rentPaid.Sub(basic.Mul(rentBasicRatio))
	limit := basic.Mul(hraRatio)

	exemption := decimal.Min(received, rentOverBasic, limit)
	return decimal.Max(decimal.Zero, exemption)
}

func computeOld(in Input) RegimeResult {
	// NOTE: 80C investments are deducted in full; the statutory 150,000 cap is not applied.
	taxable := in.AnnualIncome.
		Sub(oldStandardDeduction).
		Sub(in.Investments80C).
		Sub(HRAExemption(in.AnnualIncome, in.RentPaid)).
		Sub(in.OtherDeductions)
	taxable = decimal.Max(decimal.Zero, taxable)

	tax := decimal.Zero
	for _, slab := range oldSlabs {
		if taxable.GreaterThan(slab.Threshold) {
			tax = taxable.Sub(slab.Threshold).Mul(slab.Rate).Add(slab.Carried)
			break
		}
	}

	return RegimeResult{TaxableIncome: taxable, Tax: tax}
}

func computeNew(in Input) RegimeResult {
	taxable := decimal.Max(decimal.Zero, in.AnnualIncome.Sub(newStandardDeduction))

	tax := decimal.Zero
	remaining := taxable
	for _, b := range newBands {
		if remaining.GreaterThan(b.Threshold) {
			tax = tax.Add(remaining.Sub(b.Threshold).Mul(b.Rate))
			remaining = b.Threshold
		}
	}

	// Full rebate, not a deduction.
	if taxable.LessThanOrEqual(newRebateLimit) {
		tax = decimal.Zero
	}

	return RegimeResult{TaxableIncome: taxable, Tax: tax}
}

// sanitize clamps negative inputs to zero so Compute stays total for callers that bypass
// ParseNonNegativeDecimalOrDefault.
func sanitize(in Input) Input {
	clamp := func(d decimal.Decimal) decimal.Decimal {
		if d.IsNegative() {
			return decimal.Zero
		}
		return d
	}
	return Input{
		AnnualIncome:    clamp(in.AnnualIncome),
		Investments80C:  clamp(in.Investments80C),
		RentPaid:        clamp(in.RentPaid),
		OtherDeductions: clamp(in.OtherDeductions),
	}
}
