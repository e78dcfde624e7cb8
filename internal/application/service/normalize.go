package service

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/open-audit/internal/application/port"
	"github.com/garyjia/open-audit/internal/domain/entity"
	"github.com/garyjia/open-audit/internal/domain/taxengine"
	"github.com/garyjia/open-audit/pkg/utils"
)

var invalidAmount = decimal.NewFromInt(-1)

// NormalizeExtraction validates a raw extraction result field by field. A field that
// does not have the expected shape becomes null; the rest are kept.
func NormalizeExtraction(r *port.ExtractionResult) entity.ExtractionFields {
	if r == nil {
		return entity.ExtractionFields{}
	}

	var fields entity.ExtractionFields

	if r.Amount != nil {
		if amount := taxengine.ParseNonNegativeDecimalOrDefault(r.Amount, invalidAmount); !amount.IsNegative() {
			fields.Amount = decimal.NewNullDecimal(amount)
		}
	}

	if s, ok := r.Date.(string); ok {
		if canonical, ok := entity.CanonicalDate(s); ok {
			fields.Date = &canonical
		}
	}

	fields.Vendor = optionalText(r.Vendor)
	fields.Category = optionalText(r.Category)
	fields.AuditNotes = optionalText(r.AuditNotes)
	fields.Confidence = unitInterval(r.ConfidenceScore)

	return fields
}

func optionalText(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = utils.SanitizeString(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

// unitInterval accepts a confidence in [0, 1]
func unitInterval(v any) *float64 {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || f < 0 || f > 1 {
		return nil
	}
	return &f
}
