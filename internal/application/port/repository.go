package port

import (
	"context"

	"github.com/garyjia/open-audit/internal/domain/entity"
)

// DocumentRepository defines persistence operations for Document.
// Lookups return nil, nil when no row matches.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id int64) (*entity.Document, error)
	GetByIDForUser(ctx context.Context, id int64, userID string) (*entity.Document, error)
	List(ctx context.Context, filter entity.DocumentFilter) ([]*entity.Document, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]*entity.Document, error)

	// CompleteAnalysis writes the extraction fields and moves the document from
	// fromStatus to ANALYZED in one statement. It reports false when the row is gone
	// or no longer in fromStatus.
	CompleteAnalysis(ctx context.Context, id int64, fromStatus string, fields entity.ExtractionFields) (bool, error)

	// MarkFailed moves a PENDING document to FAILED with a diagnostic
	MarkFailed(ctx context.Context, id int64, analysisErr string) (bool, error)

	// UpdateFields applies an edit and optionally a status change in one statement
	UpdateFields(ctx context.Context, id int64, patch entity.DocumentPatch, newStatus string) error

	Delete(ctx context.Context, id int64, userID string) (bool, error)
}

// TaxRecordRepository defines persistence operations for TaxCalculationRecord
type TaxRecordRepository interface {
	Create(ctx context.Context, record *entity.TaxCalculationRecord) error
	ListByUser(ctx context.Context, userID string) ([]*entity.TaxCalculationRecord, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
