package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/garyjia/open-audit/internal/application/port"
	"github.com/garyjia/open-audit/internal/domain/auditrule"
	"github.com/garyjia/open-audit/internal/domain/entity"
	"github.com/garyjia/open-audit/internal/domain/taxengine"
	"github.com/garyjia/open-audit/internal/domain/workflow"
	"github.com/garyjia/open-audit/pkg/utils"
)

// Upload is a file submitted for analysis
type Upload struct {
	Filename     string
	MimeType     string
	Content      []byte
	DocumentType string
}

// EditInput is a partial edit of the extracted fields. Nil fields are not changed.
// Amount accepts a number or a numeric string.
type EditInput struct {
	Vendor   *string
	Amount   any
	Date     *string
	Category *string
}

// DownloadedFile is a document ready to be served as an attachment
type DownloadedFile struct {
	Filename    string
	ContentType string
	Content     []byte
	Strategy    string
}

// RetrySummary reports a batch retry of stuck documents
type RetrySummary struct {
	Attempted int
	Analyzed  int
	Failed    int
}

// DocumentServiceConfig tunes the pipeline
type DocumentServiceConfig struct {
	ExtractionTimeout time.Duration
	MaxUploadBytes    int64
	Strategies        []CandidateStrategy
}

// DeductibleCategories count towards the tax-deductible total in Stats
var DeductibleCategories = []string{"80C", "80D", "HRA"}

var allowedMimeTypes = map[string]bool{
	entity.MimeTypeJPEG: true,
	entity.MimeTypePNG:  true,
	entity.MimeTypePDF:  true,
}

// DocumentService runs the document pipeline: store, extract, audit, persist
type DocumentService interface {
	Submit(ctx context.Context, identity entity.Identity, upload Upload) (*entity.Document, error)
	Get(ctx context.Context, identity entity.Identity, id int64) (*entity.Document, error)
	List(ctx context.Context, identity entity.Identity, filter entity.DocumentFilter) ([]*entity.Document, error)
	Edit(ctx context.Context, identity entity.Identity, id int64, input EditInput) (*entity.Document, error)
	Delete(ctx context.Context, identity entity.Identity, id int64) error
	Retry(ctx context.Context, identity entity.Identity, id int64) (*entity.Document, error)
	RetryStuck(ctx context.Context, status string, limit int) (*RetrySummary, error)
	Download(ctx context.Context, identity entity.Identity, id int64) (*DownloadedFile, error)
	ExportCSV(ctx context.Context, identity entity.Identity) ([]byte, error)
	ExportXLSX(ctx context.Context, identity entity.Identity) ([]byte, error)
	Stats(ctx context.Context, identity entity.Identity) (*entity.DocumentStats, error)
}

type documentServiceImpl struct {
	repo      port.DocumentRepository
	tx        port.TransactionManager
	blobs     port.BlobStore
	fetcher   port.Fetcher
	extractor port.Extractor
	rules     *auditrule.Engine
	metrics   port.PipelineMetrics
	logger    Logger
	cfg       DocumentServiceConfig
	retries   singleflight.Group
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	repo port.DocumentRepository,
	tx port.TransactionManager,
	blobs port.BlobStore,
	fetcher port.Fetcher,
	extractor port.Extractor,
	rules *auditrule.Engine,
	metrics port.PipelineMetrics,
	logger Logger,
	cfg DocumentServiceConfig,
) DocumentService {
	if cfg.ExtractionTimeout <= 0 {
		cfg.ExtractionTimeout = 30 * time.Second
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = []CandidateStrategy{DirectStrategy{}}
	}
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &documentServiceImpl{
		repo:      repo,
		tx:        tx,
		blobs:     blobs,
		fetcher:   fetcher,
		extractor: extractor,
		rules:     rules,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Submit stores the file, records a PENDING document and analyzes it in-line.
// Extraction problems leave the document FAILED but do not fail the call.
func (s *documentServiceImpl) Submit(ctx context.Context, identity entity.Identity, upload Upload) (*entity.Document, error) {
	if identity.UserID == "" {
		return nil, ErrUnauthenticated
	}
	mimeType, err := s.validateUpload(upload)
	if err != nil {
		return nil, err
	}

	filename := utils.SanitizeFilename(upload.Filename)
	blob, err := s.blobs.Save(ctx, filename, mimeType, upload.Content)
	if err != nil {
		s.logger.Error("Failed to store upload", "user_id", identity.UserID, "stage", "store", "error", err)
		return nil, persistenceError("store upload", err)
	}

	doc := &entity.Document{
		UserID:       identity.UserID,
		FileURL:      blob.URL,
		StorageID:    blob.StorageID,
		MimeType:     mimeType,
		DocumentType: utils.SanitizeString(upload.DocumentType),
		Status:       entity.DocumentStatusPending,
	}
	if blob.ContentType != "" {
		doc.MimeType = blob.ContentType
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		s.logger.Error("Failed to create document", "user_id", identity.UserID, "stage", "insert", "error", err)
		if delErr := s.blobs.Delete(ctx, blob.StorageID); delErr != nil {
			s.logger.Error("Failed to remove orphaned blob", "storage_id", blob.StorageID, "error", delErr)
		}
		return nil, persistenceError("create document", err)
	}

	s.logger.Info("Document stored", "document_id", doc.ID, "user_id", doc.UserID, "mime_type", doc.MimeType)

	if err := s.analyze(ctx, doc); err != nil && !errors.Is(err, ErrExtractionUnavailable) {
		return nil, err
	}

	stored, err := s.repo.GetByID(ctx, doc.ID)
	if err != nil {
		return nil, persistenceError("reload document", err)
	}
	if stored == nil {
		// Deleted concurrently after the insert.
		return nil, ErrNotFound
	}
	s.metrics.DocumentSubmitted(stored.Status)
	return s.withFlags(stored), nil
}

func (s *documentServiceImpl) validateUpload(upload Upload) (string, error) {
	if len(upload.Content) == 0 {
		return "", newValidationError("file", "file is required")
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(upload.Content)) > s.cfg.MaxUploadBytes {
		return "", newValidationError("file", fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxUploadBytes))
	}

	mimeType := normalizeMimeType(upload.MimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = normalizeMimeType(http.DetectContentType(upload.Content))
	}
	if !allowedMimeTypes[mimeType] {
		return "", newValidationError("file", fmt.Sprintf("unsupported file type %q", mimeType))
	}
	return mimeType, nil
}

func normalizeMimeType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "image/jpg" || mimeType == "image/pjpeg" {
		return entity.MimeTypeJPEG
	}
	return mimeType
}

// analyze runs extraction for a PENDING or FAILED document and records the outcome
// with a conditional update. The returned error wraps ErrExtractionUnavailable when
// extraction failed and ErrPersistence when the store did.
func (s *documentServiceImpl) analyze(ctx context.Context, doc *entity.Document) error {
	trigger := workflow.TriggerCompleteAnalysis
	if doc.Status == entity.DocumentStatusFailed {
		trigger = workflow.TriggerRetrySucceeded
	}
	if _, err := workflow.NextState(ctx, doc.Status, trigger); err != nil {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}

	started := time.Now()
	result, err := s.extract(ctx, doc)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		s.metrics.ExtractionObserved(outcome, time.Since(started))
		s.logger.Error("Extraction failed",
			"document_id", doc.ID, "user_id", doc.UserID, "stage", "extract", "error", err)

		// A failed retry leaves a FAILED document and its first error untouched.
		if workflow.Permits(doc.Status, workflow.TriggerFailAnalysis) {
			if _, markErr := s.repo.MarkFailed(ctx, doc.ID, err.Error()); markErr != nil {
				s.logger.Error("Failed to mark document failed", "document_id", doc.ID, "stage", "persist", "error", markErr)
				return persistenceError("mark document failed", markErr)
			}
		}
		return fmt.Errorf("%w: %v", ErrExtractionUnavailable, err)
	}
	s.metrics.ExtractionObserved("success", time.Since(started))

	fields := NormalizeExtraction(result)
	updated, err := s.repo.CompleteAnalysis(ctx, doc.ID, doc.Status, fields)
	if err != nil {
		s.logger.Error("Failed to save analysis", "document_id", doc.ID, "stage", "persist", "error", err)
		return persistenceError("save analysis", err)
	}
	if !updated {
		s.logger.Info("Document changed during analysis, result discarded", "document_id", doc.ID)
		return nil
	}

	s.logger.Info("Document analyzed", "document_id", doc.ID, "user_id", doc.UserID)
	return nil
}

// extract bounds the extractor by the configured timeout even if it ignores ctx
func (s *documentServiceImpl) extract(ctx context.Context, doc *entity.Document) (*port.ExtractionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExtractionTimeout)
	defer cancel()

	type outcome struct {
		result *port.ExtractionResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := s.extractor.Extract(ctx, doc.FileURL, doc.MimeType)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		if o.err == nil && o.result == nil {
			return nil, errors.New("extractor returned no result")
		}
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the caller's document
func (s *documentServiceImpl) Get(ctx context.Context, identity entity.Identity, id int64) (*entity.Document, error) {
	doc, err := s.owned(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	return s.withFlags(doc), nil
}

// List returns the caller's documents, newest first
func (s *documentServiceImpl) List(ctx context.Context, identity entity.Identity, filter entity.DocumentFilter) ([]*entity.Document, error) {
	if identity.UserID == "" {
		return nil, ErrUnauthenticated
	}
	filter.UserID = identity.UserID

	docs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, persistenceError("list documents", err)
	}
	for _, doc := range docs {
		s.withFlags(doc)
	}
	return docs, nil
}

// Edit changes the extracted fields. A document that was never analyzed needs all
// four fields and becomes ANALYZED. The status check and the update share one transaction.
func (s *documentServiceImpl) Edit(ctx context.Context, identity entity.Identity, id int64, input EditInput) (*entity.Document, error) {
	patch, err := validateEdit(input)
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		doc, err := s.owned(ctx, identity, id)
		if err != nil {
			return err
		}

		var newStatus string
		if !doc.IsAnalyzed() {
			if missing := missingEditField(patch); missing != "" {
				return newValidationError(missing, "required when the document has not been analyzed")
			}
			next, err := workflow.NextState(ctx, doc.Status, workflow.TriggerManualEntry)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrConflict, err)
			}
			newStatus = next.String()
		}

		if err := s.repo.UpdateFields(ctx, id, patch, newStatus); err != nil {
			s.logger.Error("Failed to edit document", "document_id", id, "user_id", identity.UserID, "stage", "persist", "error", err)
			return persistenceError("edit document", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document edited", "document_id", id, "user_id", identity.UserID)
	return s.Get(ctx, identity, id)
}

func validateEdit(input EditInput) (entity.DocumentPatch, error) {
	var patch entity.DocumentPatch

	if input.Vendor != nil {
		vendor := utils.SanitizeString(*input.Vendor)
		if vendor == "" {
			return patch, newValidationError("vendor", "must not be empty")
		}
		patch.Vendor = &vendor
	}
	if input.Amount != nil {
		amount, err := parseStrictAmount(input.Amount)
		if err != nil {
			return patch, newValidationError("amount", err.Error())
		}
		patch.Amount = &amount
	}
	if input.Date != nil {
		date, ok := entity.CanonicalDate(*input.Date)
		if !ok {
			return patch, newValidationError("date", "must be a valid date (YYYY-MM-DD)")
		}
		patch.Date = &date
	}
	if input.Category != nil {
		category := utils.SanitizeString(*input.Category)
		if category == "" {
			return patch, newValidationError("category", "must not be empty")
		}
		patch.Category = &category
	}

	if patch.IsEmpty() {
		return patch, newValidationError("body", "no editable fields supplied")
	}
	return patch, nil
}

// parseStrictAmount accepts a non-negative number or a string that is entirely numeric
func parseStrictAmount(v any) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return d, errors.New("must be a number")
		}
		d = decimal.NewFromFloat(val)
	case int:
		d = decimal.NewFromInt(int64(val))
	case int64:
		d = decimal.NewFromInt(val)
	case decimal.Decimal:
		d = val
	case json.Number:
		d, err = decimal.NewFromString(val.String())
		if err != nil {
			return d, errors.New("must be a number")
		}
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return d, errors.New("must be a number")
		}
	default:
		return d, errors.New("must be a number")
	}
	if d.IsNegative() {
		return d, errors.New("must not be negative")
	}
	d, ok := taxengine.Bounded(d)
	if !ok {
		return d, errors.New("is too large")
	}
	return d, nil
}

func missingEditField(p entity.DocumentPatch) string {
	switch {
	case p.Vendor == nil:
		return "vendor"
	case p.Amount == nil:
		return "amount"
	case p.Date == nil:
		return "date"
	case p.Category == nil:
		return "category"
	}
	return ""
}

// Delete removes the row and then, best effort, the stored file
func (s *documentServiceImpl) Delete(ctx context.Context, identity entity.Identity, id int64) error {
	doc, err := s.owned(ctx, identity, id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, id, identity.UserID)
	if err != nil {
		return persistenceError("delete document", err)
	}
	if !deleted {
		return ErrNotFound
	}

	if err := s.blobs.Delete(ctx, doc.StorageID); err != nil {
		s.logger.Error("Failed to delete blob", "document_id", id, "storage_id", doc.StorageID, "stage", "delete", "error", err)
	}
	s.logger.Info("Document deleted", "document_id", id, "user_id", identity.UserID)
	return nil
}

// Retry re-runs extraction for a document that is not analyzed yet. Concurrent
// retries of one document share a single extraction.
func (s *documentServiceImpl) Retry(ctx context.Context, identity entity.Identity, id int64) (*entity.Document, error) {
	doc, err := s.owned(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if workflow.State(doc.Status).IsTerminal() {
		return nil, fmt.Errorf("%w: document %d is already analyzed", ErrConflict, id)
	}

	if err := s.retryOnce(ctx, doc); err != nil {
		return nil, err
	}
	return s.Get(ctx, identity, id)
}

func (s *documentServiceImpl) retryOnce(ctx context.Context, doc *entity.Document) error {
	_, err, _ := s.retries.Do(strconv.FormatInt(doc.ID, 10), func() (interface{}, error) {
		return nil, s.analyze(ctx, doc)
	})
	return err
}

// RetryStuck retries up to limit documents in status (PENDING or FAILED) across users
func (s *documentServiceImpl) RetryStuck(ctx context.Context, status string, limit int) (*RetrySummary, error) {
	if status != entity.DocumentStatusPending && status != entity.DocumentStatusFailed {
		return nil, newValidationError("status", "must be PENDING or FAILED")
	}

	docs, err := s.repo.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, persistenceError("list documents", err)
	}

	summary := &RetrySummary{}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Attempted++

		err := s.retryOnce(ctx, doc)
		switch {
		case err == nil:
			summary.Analyzed++
		case errors.Is(err, ErrExtractionUnavailable):
			summary.Failed++
		default:
			return summary, err
		}
	}

	s.logger.Info("Retry batch finished",
		"status", status, "attempted", summary.Attempted, "analyzed", summary.Analyzed, "failed", summary.Failed)
	return summary, nil
}

// Download tries each candidate URL once, in order
func (s *documentServiceImpl) Download(ctx context.Context, identity entity.Identity, id int64) (*DownloadedFile, error) {
	doc, err := s.owned(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	tried := make(map[string]bool)
	var lastErr error
	for _, strategy := range s.cfg.Strategies {
		candidate, ok := strategy.Candidate(doc)
		if !ok || tried[candidate] {
			continue
		}
		tried[candidate] = true

		content, contentType, err := s.fetcher.Fetch(ctx, candidate)
		s.metrics.DownloadAttempted(strategy.Name(), err == nil)
		if err != nil {
			lastErr = err
			s.logger.Error("Download attempt failed",
				"document_id", id, "strategy", strategy.Name(), "stage", "download", "error", err)
			continue
		}

		if contentType == "" {
			contentType = doc.MimeType
		}
		return &DownloadedFile{
			Filename:    fmt.Sprintf("receipt_%d.%s", doc.ID, extensionFor(contentType)),
			ContentType: contentType,
			Content:     content,
			Strategy:    strategy.Name(),
		}, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no download candidate")
	}
	return nil, fmt.Errorf("%w: %v", ErrRetrievalFailure, lastErr)
}

// ExportCSV renders all of the caller's documents as CSV
func (s *documentServiceImpl) ExportCSV(ctx context.Context, identity entity.Identity) ([]byte, error) {
	docs, err := s.List(ctx, identity, entity.DocumentFilter{})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteDocumentsCSV(&buf, docs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportXLSX renders all of the caller's documents as a workbook
func (s *documentServiceImpl) ExportXLSX(ctx context.Context, identity entity.Identity) ([]byte, error) {
	docs, err := s.List(ctx, identity, entity.DocumentFilter{})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteDocumentsXLSX(&buf, docs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stats summarizes spend across the caller's documents
func (s *documentServiceImpl) Stats(ctx context.Context, identity entity.Identity) (*entity.DocumentStats, error) {
	docs, err := s.List(ctx, identity, entity.DocumentFilter{})
	if err != nil {
		return nil, err
	}

	stats := &entity.DocumentStats{
		TotalDocuments:  len(docs),
		TotalSpend:      decimal.Zero,
		DeductibleSpend: decimal.Zero,
		ByCategory:      make(map[string]decimal.Decimal),
	}
	for _, doc := range docs {
		if len(doc.AuditFlags) > 0 {
			stats.FlaggedCount++
		}
		if !doc.ExtractedAmount.Valid {
			continue
		}
		amount := doc.ExtractedAmount.Decimal
		stats.TotalSpend = stats.TotalSpend.Add(amount)

		category := "Uncategorized"
		if doc.Category != nil {
			category = *doc.Category
		}
		stats.ByCategory[category] = stats.ByCategory[category].Add(amount)
		if isDeductible(category) {
			stats.DeductibleSpend = stats.DeductibleSpend.Add(amount)
		}
	}
	return stats, nil
}

func isDeductible(category string) bool {
	for _, c := range DeductibleCategories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

func (s *documentServiceImpl) owned(ctx context.Context, identity entity.Identity, id int64) (*entity.Document, error) {
	if identity.UserID == "" {
		return nil, ErrUnauthenticated
	}
	doc, err := s.repo.GetByIDForUser(ctx, id, identity.UserID)
	if err != nil {
		return nil, persistenceError("get document", err)
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *documentServiceImpl) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.WithTransaction(ctx, fn)
}

func (s *documentServiceImpl) withFlags(doc *entity.Document) *entity.Document {
	doc.AuditFlags = s.rules.FlagDocument(doc)
	return doc
}
