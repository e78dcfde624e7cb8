// Package auditrule flags anomalies in an extracted document. Rules are plain values
// evaluated in order; every rule that applies contributes one flag.
package auditrule

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/open-audit/internal/domain/entity"
)

// Flag labels
const (
	FlagHighAmount       = "High Amount"
	FlagOutsideFY        = "Outside Current Financial Year"
	FlagWeekendExpense   = "Weekend Expense (Potential Personal)"
	restrictedVendorFlag = "Restricted Vendor Category: %s"
)

// Subject is the view of a document the rules inspect
type Subject struct {
	Amount decimal.Decimal // missing amounts are zero
	Date   string          // raw date; unparsable dates skip date rules
	Vendor string
}

// SubjectOf builds a Subject from a stored document
func SubjectOf(doc *entity.Document) Subject {
	var s Subject
	if doc.ExtractedAmount.Valid {
		s.Amount = doc.ExtractedAmount.Decimal
	}
	if doc.ExtractedDate != nil {
		s.Date = *doc.ExtractedDate
	}
	if doc.ExtractedVendor != nil {
		s.Vendor = *doc.ExtractedVendor
	}
	return s
}

// Rule is one independent check
type Rule interface {
	Name() string
	Evaluate(s Subject) (flag string, ok bool)
}

// HighAmountRule fires when the amount reaches Threshold
type HighAmountRule struct {
	Threshold decimal.Decimal
}

func (r HighAmountRule) Name() string { return "high_amount" }

func (r HighAmountRule) Evaluate(s Subject) (string, bool) {
	if s.Amount.GreaterThanOrEqual(r.Threshold) {
		return FlagHighAmount, true
	}
	return "", false
}

// FiscalYearRule fires when the date falls outside Year
type FiscalYearRule struct {
	Year entity.FiscalYear
}

func (r FiscalYearRule) Name() string { return "fiscal_year" }

func (r FiscalYearRule) Evaluate(s Subject) (string, bool) {
	date, ok := entity.ParseDate(s.Date)
	if !ok || r.Year.Contains(date) {
		return "", false
	}
	return FlagOutsideFY, true
}

// WeekendRule fires for expenses dated on a Saturday or Sunday
type WeekendRule struct{}

func (WeekendRule) Name() string { return "weekend" }

func (WeekendRule) Evaluate(s Subject) (string, bool) {
	date, ok := entity.ParseDate(s.Date)
	if !ok {
		return "", false
	}
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return FlagWeekendExpense, true
	}
	return "", false
}

// RestrictedVendorRule fires when the vendor contains any keyword. The flag carries the
// vendor exactly as extracted.
type RestrictedVendorRule struct {
	Keywords      []string
	CaseSensitive bool
}

func (r RestrictedVendorRule) Name() string { return "restricted_vendor" }

func (r RestrictedVendorRule) Evaluate(s Subject) (string, bool) {
	if s.Vendor == "" {
		return "", false
	}
	haystack := s.Vendor
	if !r.CaseSensitive {
		haystack = strings.ToLower(haystack)
	}
	for _, kw := range r.Keywords {
		if kw == "" {
			continue
		}
		if !r.CaseSensitive {
			kw = strings.ToLower(kw)
		}
		if strings.Contains(haystack, kw) {
			return fmt.Sprintf(restrictedVendorFlag, s.Vendor), true
		}
	}
	return "", false
}
