package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxCalculationRecord is one immutable regime comparison saved for a user
type TaxCalculationRecord struct {
	ID                     int64           `json:"id"`
	UserID                 string          `json:"user_id"`
	FinancialYear          string          `json:"financial_year"`
	AnnualIncome           decimal.Decimal `json:"annual_income"`
	Investments80C         decimal.Decimal `json:"investments_80c"`
	RentPaid               decimal.Decimal `json:"rent_paid"`
	OtherDeductions        decimal.Decimal `json:"other_deductions"`
	OldRegimeTaxableIncome decimal.Decimal `json:"old_regime_taxable_income"`
	NewRegimeTaxableIncome decimal.Decimal `json:"new_regime_taxable_income"`
	OldRegimeTax           decimal.Decimal `json:"old_regime_tax"`
	NewRegimeTax           decimal.Decimal `json:"new_regime_tax"`
	FinalTax               decimal.Decimal `json:"final_tax"`
	Savings                decimal.Decimal `json:"savings"`
	Recommendation         string          `json:"recommendation"`
	CreatedAt              time.Time       `json:"created_at"`
}
