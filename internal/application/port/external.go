package port

import "context"

// ExtractionResult is the raw answer of an extraction service. Values keep the
// types the service produced; any of them may be nil.
type ExtractionResult struct {
	Amount          any
	Date            any
	Vendor          any
	Category        any
	ConfidenceScore any
	AuditNotes      any
}

// Extractor turns a stored file into structured fields
type Extractor interface {
	Extract(ctx context.Context, fileURL, mimeType string) (*ExtractionResult, error)
}

// ExtractionResultFromMap maps the wire field names onto an ExtractionResult
func ExtractionResultFromMap(m map[string]any) *ExtractionResult {
	return &ExtractionResult{
		Amount:          m["amount"],
		Date:            m["date"],
		Vendor:          m["vendor"],
		Category:        m["category"],
		ConfidenceScore: m["confidence_score"],
		AuditNotes:      m["audit_notes"],
	}
}
