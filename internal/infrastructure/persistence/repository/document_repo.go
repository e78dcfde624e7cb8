package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/open-audit/internal/application/port"
	"github.com/garyjia/open-audit/internal/domain/entity"
	"github.com/garyjia/open-audit/internal/infrastructure/persistence/sqlite"
)

const documentColumns = `
	id, user_id, file_url, storage_id, mime_type, document_type, status,
	extracted_amount, extracted_date, extracted_vendor, category,
	confidence_score, audit_notes, analysis_error, uploaded_at, updated_at`

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a document and sets its ID. UploadedAt is filled in when zero.
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = r.now()
	}
	if doc.Status == "" {
		doc.Status = entity.DocumentStatusPending
	}
	doc.UpdatedAt = doc.UploadedAt

	query := `
		INSERT INTO documents (
			user_id, file_url, storage_id, mime_type, document_type, status,
			extracted_amount, extracted_date, extracted_vendor, category,
			confidence_score, audit_notes, analysis_error, uploaded_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.exec(ctx).ExecContext(ctx, query,
		doc.UserID,
		doc.FileURL,
		doc.StorageID,
		doc.MimeType,
		doc.DocumentType,
		doc.Status,
		nullDecimalArg(doc.ExtractedAmount),
		doc.ExtractedDate,
		doc.ExtractedVendor,
		doc.Category,
		doc.ConfidenceScore,
		doc.AuditNotes,
		doc.AnalysisError,
		doc.UploadedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create document", zap.String("user_id", doc.UserID), zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	doc.ID = id
	return nil
}

// GetByID retrieves a document regardless of owner
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`

	doc, err := scanDocument(r.exec(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document", zap.Int64("document_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// GetByIDForUser retrieves a document only when userID owns it
func (r *DocumentRepository) GetByIDForUser(ctx context.Context, id int64, userID string) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ? AND user_id = ?`

	doc, err := scanDocument(r.exec(ctx).QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document",
			zap.Int64("document_id", id), zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// List returns the user's documents, newest first
func (r *DocumentRepository) List(ctx context.Context, filter entity.DocumentFilter) ([]*entity.Document, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []interface{}{filter.UserID}
	)
	if search := strings.TrimSpace(filter.Search); search != "" {
		where = append(where, "LOWER(COALESCE(extracted_vendor, '')) LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(strings.ToLower(search))+"%")
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY uploaded_at DESC, id DESC`

	return r.queryDocuments(ctx, query, args...)
}

// ListByStatus returns documents in a status across all users, oldest first.
// A limit of zero or less returns all of them.
func (r *DocumentRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*entity.Document, error) {
	if limit <= 0 {
		// SQLite treats a negative LIMIT as no upper bound
		limit = -1
	}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE status = ? ORDER BY id ASC LIMIT ?`
	return r.queryDocuments(ctx, query, status, limit)
}

// CompleteAnalysis writes every extraction column and the ANALYZED status together
func (r *DocumentRepository) CompleteAnalysis(ctx context.Context, id int64, fromStatus string, fields entity.ExtractionFields) (bool, error) {
	query := `
		UPDATE documents SET
			status = ?,
			extracted_amount = ?,
			extracted_date = ?,
			extracted_vendor = ?,
			category = ?,
			confidence_score = ?,
			audit_notes = ?,
			analysis_error = NULL,
			updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.exec(ctx).ExecContext(ctx, query,
		entity.DocumentStatusAnalyzed,
		nullDecimalArg(fields.Amount),
		fields.Date,
		fields.Vendor,
		fields.Category,
		fields.Confidence,
		fields.AuditNotes,
		r.now(),
		id,
		fromStatus,
	)
	if err != nil {
		r.logger.Error("Failed to complete analysis", zap.Int64("document_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to complete analysis: %w", err)
	}
	return affectedOne(result)
}

// MarkFailed moves a PENDING document to FAILED
func (r *DocumentRepository) MarkFailed(ctx context.Context, id int64, analysisErr string) (bool, error) {
	query := `UPDATE documents SET status = ?, analysis_error = ?, updated_at = ? WHERE id = ? AND status = ?`

	result, err := r.exec(ctx).ExecContext(ctx, query,
		entity.DocumentStatusFailed, analysisErr, r.now(), id, entity.DocumentStatusPending)
	if err != nil {
		r.logger.Error("Failed to mark document failed", zap.Int64("document_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to mark document failed: %w", err)
	}
	return affectedOne(result)
}

// UpdateFields applies the non-nil patch fields, and newStatus when it is not empty
func (r *DocumentRepository) UpdateFields(ctx context.Context, id int64, patch entity.DocumentPatch, newStatus string) error {
	var (
		sets = []string{"updated_at = ?"}
		args = []interface{}{r.now()}
	)
	if patch.Vendor != nil {
		sets = append(sets, "extracted_vendor = ?")
		args = append(args, *patch.Vendor)
	}
	if patch.Amount != nil {
		sets = append(sets, "extracted_amount = ?")
		args = append(args, patch.Amount.String())
	}
	if patch.Date != nil {
		sets = append(sets, "extracted_date = ?")
		args = append(args, *patch.Date)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *patch.Category)
	}
	if newStatus != "" {
		sets = append(sets, "status = ?", "analysis_error = NULL")
		args = append(args, newStatus)
	}
	args = append(args, id)

	query := `UPDATE documents SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := r.exec(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to update document", zap.Int64("document_id", id), zap.Error(err))
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

// Delete removes the user's document and reports whether a row was deleted
func (r *DocumentRepository) Delete(ctx context.Context, id int64, userID string) (bool, error) {
	result, err := r.exec(ctx).ExecContext(ctx, `DELETE FROM documents WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		r.logger.Error("Failed to delete document", zap.Int64("document_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	return affectedOne(result)
}

func (r *DocumentRepository) queryDocuments(ctx context.Context, query string, args ...interface{}) ([]*entity.Document, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.Error(err))
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*entity.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) exec(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc        entity.Document
		amount     sql.NullString
		date       sql.NullString
		vendor     sql.NullString
		category   sql.NullString
		confidence sql.NullFloat64
		notes      sql.NullString
		analysis   sql.NullString
	)

	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.FileURL,
		&doc.StorageID,
		&doc.MimeType,
		&doc.DocumentType,
		&doc.Status,
		&amount,
		&date,
		&vendor,
		&category,
		&confidence,
		&notes,
		&analysis,
		&doc.UploadedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if amount.Valid {
		d, err := decimal.NewFromString(amount.String)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", amount.String, err)
		}
		doc.ExtractedAmount = decimal.NewNullDecimal(d)
	}
	doc.ExtractedDate = nullStringPtr(date)
	doc.ExtractedVendor = nullStringPtr(vendor)
	doc.Category = nullStringPtr(category)
	doc.AuditNotes = nullStringPtr(notes)
	doc.AnalysisError = nullStringPtr(analysis)
	if confidence.Valid {
		c := confidence.Float64
		doc.ConfidenceScore = &c
	}

	return &doc, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// nullDecimalArg stores decimals as exact text
func nullDecimalArg(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var _ port.DocumentRepository = (*DocumentRepository)(nil)
