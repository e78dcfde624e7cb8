package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/open-audit/internal/application/port"
)

func TestNormalizeExtraction(t *testing.T) {
	t.Run("nil result", func(t *testing.T) {
		fields := NormalizeExtraction(nil)
		assert.False(t, fields.Amount.Valid)
		assert.Nil(t, fields.Vendor)
	})

	t.Run("well formed", func(t *testing.T) {
		fields := NormalizeExtraction(port.ExtractionResultFromMap(map[string]any{
			"amount":           json.Number("1499.99"),
			"date":             "2025-09-14",
			"vendor":           "  Metro Mart ",
			"category":         "Groceries",
			"confidence_score": 0.5,
			"audit_notes":      "Clear print",
		}))

		assert.True(t, fields.Amount.Valid)
		assert.Equal(t, "1499.99", fields.Amount.Decimal.String())
		assert.Equal(t, "2025-09-14", *fields.Date)
		assert.Equal(t, "Metro Mart", *fields.Vendor)
		assert.Equal(t, "Groceries", *fields.Category)
		assert.Equal(t, 0.5, *fields.Confidence)
		assert.Equal(t, "Clear print", *fields.AuditNotes)
	})

	t.Run("invalid fields are dropped individually", func(t *testing.T) {
		fields := NormalizeExtraction(port.ExtractionResultFromMap(map[string]any{
			"amount":           "-20",
			"date":             "sometime last week",
			"vendor":           42,
			"category":         "null",
			"confidence_score": 1.7,
			"audit_notes":      "kept",
		}))

		assert.False(t, fields.Amount.Valid)
		assert.Nil(t, fields.Date)
		assert.Nil(t, fields.Vendor)
		assert.Nil(t, fields.Category)
		assert.Nil(t, fields.Confidence)
		assert.Equal(t, "kept", *fields.AuditNotes)
	})
}

func TestNormalizeExtraction_Amount(t *testing.T) {
	tests := []struct {
		name  string
		input any
		valid bool
		want  string
	}{
		{"absent", nil, false, ""},
		{"float", 250.75, true, "250.75"},
		{"numeric string", "980", true, "980"},
		{"zero", 0.0, true, "0"},
		{"garbage", "n/a", false, ""},
		{"negative", -1.0, false, ""},
		{"bool", false, false, ""},
		{"overflowing exponent", "1e400", false, ""},
		{"huge float", 1e300, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := NormalizeExtraction(&port.ExtractionResult{Amount: tt.input})
			assert.Equal(t, tt.valid, fields.Amount.Valid)
			if tt.valid {
				assert.Equal(t, tt.want, fields.Amount.Decimal.String())
			}
		})
	}
}

func TestUnitInterval(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  *float64
	}{
		{"lower bound", 0.0, ptr(0.0)},
		{"upper bound", 1, ptr(1.0)},
		{"string", "0.25", ptr(0.25)},
		{"json number", json.Number("0.9"), ptr(0.9)},
		{"above range", 95.0, nil},
		{"below range", -0.1, nil},
		{"not a number", "high", nil},
		{"missing", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := unitInterval(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.InDelta(t, *tt.want, *got, 1e-9)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }
