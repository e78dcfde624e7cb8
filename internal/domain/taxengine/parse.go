package taxengine

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// leadingNumber matches the numeric prefix a permissive float parse would accept
// ("1200.50abc" -> "1200.50").
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// MaxIntegerDigits caps accepted amounts below 1e15.
const MaxIntegerDigits = 15

const maxFractionDigits = 6

// Bounded reports whether d fits below 10^MaxIntegerDigits. The check reads only
// the coefficient length and exponent, so "1e3000000" is rejected without
// expanding it. Fractions finer than a millionth are rounded away.
func Bounded(d decimal.Decimal) (decimal.Decimal, bool) {
	if d.IsZero() {
		return decimal.Zero, true
	}
	magnitude := int64(d.NumDigits()) + int64(d.Exponent())
	if magnitude > MaxIntegerDigits {
		return d, false
	}
	if magnitude < -maxFractionDigits {
		return decimal.Zero, true
	}
	if d.Exponent() < -maxFractionDigits {
		d = d.Round(maxFractionDigits)
	}
	return d, true
}

// ParseNonNegativeDecimalOrDefault coerces an untyped input value to a non-negative decimal.
// Numbers, numeric strings and json.Number are accepted; anything unparsable, negative,
// NaN, infinite or too large for Bounded yields def. It never fails.
func ParseNonNegativeDecimalOrDefault(v any, def decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal

	switch val := v.(type) {
	case nil:
		return def
	case decimal.Decimal:
		d = val
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return def
		}
		d = decimal.NewFromFloat(val)
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return def
		}
		d = decimal.NewFromFloat32(val)
	case int:
		d = decimal.NewFromInt(int64(val))
	case int64:
		d = decimal.NewFromInt(val)
	case int32:
		d = decimal.NewFromInt32(val)
	case json.Number:
		return ParseNonNegativeDecimalOrDefault(val.String(), def)
	case string:
		match := leadingNumber.FindString(strings.TrimSpace(val))
		if match == "" {
			return def
		}
		parsed, err := decimal.NewFromString(match)
		if err != nil {
			return def
		}
		d = parsed
	default:
		return def
	}

	if d.IsNegative() {
		return def
	}
	d, ok := Bounded(d)
	if !ok {
		return def
	}
	return d
}
