package auditrule

import (
	"github.com/shopspring/decimal"

	"github.com/garyjia/open-audit/internal/domain/entity"
)

// DefaultHighAmount is the amount at which a document is flagged
var DefaultHighAmount = decimal.NewFromInt(20000)

// DefaultRestrictedKeywords are vendor fragments that suggest personal spending
var DefaultRestrictedKeywords = []string{"bar", "pub", "spa", "movie", "cinema", "netflix"}

// Config parameterizes the default rule set
type Config struct {
	FiscalYear          entity.FiscalYear
	HighAmountThreshold decimal.Decimal
	RestrictedKeywords  []string
	CaseSensitiveVendor bool
}

// DefaultRules returns the rules in display order
func DefaultRules(cfg Config) []Rule {
	threshold := cfg.HighAmountThreshold
	if threshold.IsZero() {
		threshold = DefaultHighAmount
	}
	keywords := cfg.RestrictedKeywords
	if len(keywords) == 0 {
		keywords = DefaultRestrictedKeywords
	}

	return []Rule{
		HighAmountRule{Threshold: threshold},
		FiscalYearRule{Year: cfg.FiscalYear},
		WeekendRule{},
		RestrictedVendorRule{Keywords: keywords, CaseSensitive: cfg.CaseSensitiveVendor},
	}
}

// Engine evaluates an ordered rule list
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine over rules, kept in the given order
func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: append([]Rule(nil), rules...)}
}

// Flag runs every rule and returns the flags that fired, in rule order.
// The result is never nil.
func (e *Engine) Flag(s Subject) []string {
	flags := make([]string, 0, len(e.rules))
	for _, rule := range e.rules {
		if flag, ok := rule.Evaluate(s); ok {
			flags = append(flags, flag)
		}
	}
	return flags
}

// FlagDocument is Flag over a stored document
func (e *Engine) FlagDocument(doc *entity.Document) []string {
	return e.Flag(SubjectOf(doc))
}

// Rules returns the configured rule names in evaluation order
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}
