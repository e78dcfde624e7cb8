package auditrule

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/open-audit/internal/domain/entity"
)

func newDefaultEngine(t *testing.T) *Engine {
	t.Helper()
	fy, err := entity.ParseFiscalYear("2025-2026")
	require.NoError(t, err)
	return NewEngine(DefaultRules(Config{FiscalYear: fy})...)
}

func TestEngine_ScenarioC(t *testing.T) {
	engine := newDefaultEngine(t)

	flags := engine.Flag(Subject{
		Amount: decimal.NewFromInt(25000),
		Date:   "2025-06-07", // Saturday
		Vendor: "Cineplex Movie House",
	})

	assert.Equal(t, []string{
		"High Amount",
		"Weekend Expense (Potential Personal)",
		"Restricted Vendor Category: Cineplex Movie House",
	}, flags)
}

func TestEngine_ScenarioD(t *testing.T) {
	engine := newDefaultEngine(t)

	flags := engine.Flag(Subject{Date: "2024-01-01"})

	assert.Contains(t, flags, "Outside Current Financial Year")
}

func TestEngine_CleanDocument(t *testing.T) {
	engine := newDefaultEngine(t)

	flags := engine.Flag(Subject{
		Amount: decimal.NewFromInt(1999),
		Date:   "2025-06-10", // Tuesday
		Vendor: "Office Supplies Co",
	})

	require.NotNil(t, flags)
	assert.Empty(t, flags)
}

func TestEngine_OrderIsStable(t *testing.T) {
	engine := newDefaultEngine(t)
	subject := Subject{
		Amount: decimal.NewFromInt(50000),
		Date:   "2024-03-02", // Saturday outside the year
		Vendor: "Neighbourhood Pub",
	}

	want := []string{
		FlagHighAmount,
		FlagOutsideFY,
		FlagWeekendExpense,
		"Restricted Vendor Category: Neighbourhood Pub",
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, want, engine.Flag(subject))
	}
	assert.Equal(t, []string{"high_amount", "fiscal_year", "weekend", "restricted_vendor"}, engine.Rules())
}

func TestEngine_UnparsableDateSkipsDateRules(t *testing.T) {
	engine := newDefaultEngine(t)

	flags := engine.Flag(Subject{Amount: decimal.NewFromInt(10), Date: "not a date"})

	assert.Empty(t, flags)
}

func TestHighAmountRule(t *testing.T) {
	rule := HighAmountRule{Threshold: DefaultHighAmount}

	tests := []struct {
		amount string
		want   bool
	}{
		{"0", false},
		{"19999.99", false},
		{"20000", true},
		{"20000.01", true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			_, ok := rule.Evaluate(Subject{Amount: decimal.RequireFromString(tt.amount)})
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestWeekendRule(t *testing.T) {
	tests := []struct {
		date string
		want bool
	}{
		{"2025-06-07", true},  // Saturday
		{"2025-06-08", true},  // Sunday
		{"2025-06-09", false}, // Monday
		{"2025-06-13", false}, // Friday
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			_, ok := WeekendRule{}.Evaluate(Subject{Date: tt.date})
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestRestrictedVendorRule(t *testing.T) {
	tests := []struct {
		name          string
		vendor        string
		caseSensitive bool
		want          string
		wantOK        bool
	}{
		{"lowercase keyword", "the sports bar", false, "Restricted Vendor Category: the sports bar", true},
		{"mixed case insensitive", "NETFLIX.COM", false, "Restricted Vendor Category: NETFLIX.COM", true},
		{"mixed case sensitive", "NETFLIX.COM", true, "", false},
		{"sensitive lowercase hit", "day spa", true, "Restricted Vendor Category: day spa", true},
		{"substring match", "Barista Coffee", false, "Restricted Vendor Category: Barista Coffee", true},
		{"no keyword", "Stationery World", false, "", false},
		{"empty vendor", "", false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := RestrictedVendorRule{Keywords: DefaultRestrictedKeywords, CaseSensitive: tt.caseSensitive}
			flag, ok := rule.Evaluate(Subject{Vendor: tt.vendor})
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, flag)
		})
	}
}

func TestFlagDocument_NullFields(t *testing.T) {
	engine := newDefaultEngine(t)

	flags := engine.FlagDocument(&entity.Document{Status: entity.DocumentStatusPending})

	assert.Empty(t, flags)
}

func TestFlagDocument_UsesStoredFields(t *testing.T) {
	engine := newDefaultEngine(t)
	date := "2025-06-07"
	vendor := "Cinema Hall"

	flags := engine.FlagDocument(&entity.Document{
		ExtractedAmount: decimal.NewNullDecimal(decimal.NewFromInt(30000)),
		ExtractedDate:   &date,
		ExtractedVendor: &vendor,
	})

	assert.Equal(t, []string{FlagHighAmount, FlagWeekendExpense, "Restricted Vendor Category: Cinema Hall"}, flags)
}

func TestDefaultRules_CustomConfig(t *testing.T) {
	fy, err := entity.ParseFiscalYear("2024-2025")
	require.NoError(t, err)

	engine := NewEngine(DefaultRules(Config{
		FiscalYear:          fy,
		HighAmountThreshold: decimal.NewFromInt(100),
		RestrictedKeywords:  []string{"casino"},
	})...)

	flags := engine.Flag(Subject{Amount: decimal.NewFromInt(100), Date: "2024-05-01", Vendor: "Movie Casino"})

	assert.Equal(t, []string{FlagHighAmount, "Restricted Vendor Category: Movie Casino"}, flags)
}
