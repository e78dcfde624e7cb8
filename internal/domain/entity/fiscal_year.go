package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FiscalYear is an April-to-March financial year such as "2025-2026"
type FiscalYear struct {
	Label string
	Start time.Time // first day, inclusive
	End   time.Time // last day, inclusive
}

// ParseFiscalYear parses a "YYYY-YYYY" label whose second year follows the first.
func ParseFiscalYear(label string) (FiscalYear, error) {
	parts := strings.Split(strings.TrimSpace(label), "-")
	if len(parts) != 2 {
		return FiscalYear{}, fmt.Errorf("invalid financial year %q: want YYYY-YYYY", label)
	}

	startYear, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return FiscalYear{}, fmt.Errorf("invalid financial year %q: bad start year", label)
	}
	endYear, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return FiscalYear{}, fmt.Errorf("invalid financial year %q: bad end year", label)
	}
	if endYear != startYear+1 {
		return FiscalYear{}, fmt.Errorf("invalid financial year %q: years must be consecutive", label)
	}

	return FiscalYear{
		Label: fmt.Sprintf("%d-%d", startYear, endYear),
		Start: time.Date(startYear, time.April, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(endYear, time.March, 31, 0, 0, 0, 0, time.UTC),
	}, nil
}

// Contains reports whether the calendar date of t falls inside the year, bounds included
func (fy FiscalYear) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(fy.Start) && !day.After(fy.End)
}
