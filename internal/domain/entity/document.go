package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document status constants
const (
	DocumentStatusPending  = "PENDING"
	DocumentStatusAnalyzed = "ANALYZED"
	DocumentStatusFailed   = "FAILED"
)

// Supported upload content types
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypePDF  = "application/pdf"
)

// Document is an uploaded receipt or invoice and its extracted fields.
// Extraction fields stay nil until analysis completes.
type Document struct {
	ID              int64               `json:"id"`
	UserID          string              `json:"user_id"`
	FileURL         string              `json:"file_url"`
	StorageID       string              `json:"storage_id"`
	MimeType        string              `json:"mime_type"`
	DocumentType    string              `json:"document_type"`
	Status          string              `json:"status"`
	ExtractedAmount decimal.NullDecimal `json:"extracted_amount"`
	ExtractedDate   *string             `json:"extracted_date"` // YYYY-MM-DD
	ExtractedVendor *string             `json:"extracted_vendor"`
	Category        *string             `json:"category"`
	ConfidenceScore *float64            `json:"confidence_score"`
	AuditNotes      *string             `json:"audit_notes"`
	AnalysisError   *string             `json:"-"`
	AuditFlags      []string            `json:"audit_flags"` // computed on read
	UploadedAt      time.Time           `json:"uploaded_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// IsAnalyzed returns true once extraction fields have been written
func (d *Document) IsAnalyzed() bool {
	return d.Status == DocumentStatusAnalyzed
}

// ExtractionFields is the normalized output of one analysis, written together with
// the status change.
type ExtractionFields struct {
	Amount     decimal.NullDecimal
	Date       *string
	Vendor     *string
	Category   *string
	Confidence *float64
	AuditNotes *string
}

// DocumentPatch carries a partial edit. Nil fields are left unchanged.
type DocumentPatch struct {
	Vendor   *string
	Amount   *decimal.Decimal
	Date     *string
	Category *string
}

// IsComplete reports whether every editable field is supplied
func (p DocumentPatch) IsComplete() bool {
	return p.Vendor != nil && p.Amount != nil && p.Date != nil && p.Category != nil
}

// IsEmpty reports whether the patch changes nothing
func (p DocumentPatch) IsEmpty() bool {
	return p.Vendor == nil && p.Amount == nil && p.Date == nil && p.Category == nil
}

// DocumentFilter narrows a document listing
type DocumentFilter struct {
	UserID   string
	Search   string // vendor substring, case-insensitive
	Category string // exact match
}

// DocumentStats summarizes a user's documents
type DocumentStats struct {
	TotalDocuments  int                        `json:"total_documents"`
	TotalSpend      decimal.Decimal            `json:"total_spend"`
	DeductibleSpend decimal.Decimal            `json:"deductible_spend"`
	FlaggedCount    int                        `json:"flagged_count"`
	ByCategory      map[string]decimal.Decimal `json:"by_category"`
}
