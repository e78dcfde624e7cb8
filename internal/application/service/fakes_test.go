package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyjia/open-audit/internal/application/port"
	"github.com/garyjia/open-audit/internal/domain/auditrule"
	"github.com/garyjia/open-audit/internal/domain/entity"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// fakeDocumentRepo is an in-memory DocumentRepository honoring the conditional updates
type fakeDocumentRepo struct {
	mu     sync.Mutex
	nextID int64
	docs   map[int64]*entity.Document

	createErr error
	listErr   error

	markFailedCalls int
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: make(map[int64]*entity.Document)}
}

func copyDoc(d *entity.Document) *entity.Document {
	c := *d
	c.AuditFlags = nil
	return &c
}

func (r *fakeDocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	doc.ID = r.nextID
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(doc.ID) * time.Minute)
	}
	doc.UpdatedAt = doc.UploadedAt
	r.docs[doc.ID] = copyDoc(doc)
	return nil
}

func (r *fakeDocumentRepo) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.docs[id]; ok {
		return copyDoc(d), nil
	}
	return nil, nil
}

func (r *fakeDocumentRepo) GetByIDForUser(ctx context.Context, id int64, userID string) (*entity.Document, error) {
	d, err := r.GetByID(ctx, id)
	if d == nil || d.UserID != userID {
		return nil, err
	}
	return d, nil
}

func (r *fakeDocumentRepo) List(ctx context.Context, filter entity.DocumentFilter) ([]*entity.Document, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Document, 0)
	for _, d := range r.docs {
		if d.UserID != filter.UserID {
			continue
		}
		if filter.Search != "" && (d.ExtractedVendor == nil ||
			!strings.Contains(strings.ToLower(*d.ExtractedVendor), strings.ToLower(filter.Search))) {
			continue
		}
		if filter.Category != "" && (d.Category == nil || *d.Category != filter.Category) {
			continue
		}
		out = append(out, copyDoc(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeDocumentRepo) ListByStatus(ctx context.Context, status string, limit int) ([]*entity.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Document, 0)
	for _, d := range r.docs {
		if d.Status == status {
			out = append(out, copyDoc(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeDocumentRepo) CompleteAnalysis(ctx context.Context, id int64, fromStatus string, f entity.ExtractionFields) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.Status != fromStatus {
		return false, nil
	}
	d.Status = entity.DocumentStatusAnalyzed
	d.ExtractedAmount = f.Amount
	d.ExtractedDate = f.Date
	d.ExtractedVendor = f.Vendor
	d.Category = f.Category
	d.ConfidenceScore = f.Confidence
	d.AuditNotes = f.AuditNotes
	d.AnalysisError = nil
	return true, nil
}

func (r *fakeDocumentRepo) MarkFailed(ctx context.Context, id int64, analysisErr string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markFailedCalls++
	d, ok := r.docs[id]
	if !ok || d.Status != entity.DocumentStatusPending {
		return false, nil
	}
	d.Status = entity.DocumentStatusFailed
	d.AnalysisError = &analysisErr
	return true, nil
}

func (r *fakeDocumentRepo) UpdateFields(ctx context.Context, id int64, p entity.DocumentPatch, newStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil
	}
	if p.Vendor != nil {
		d.ExtractedVendor = p.Vendor
	}
	if p.Amount != nil {
		d.ExtractedAmount.Decimal = *p.Amount
		d.ExtractedAmount.Valid = true
	}
	if p.Date != nil {
		d.ExtractedDate = p.Date
	}
	if p.Category != nil {
		d.Category = p.Category
	}
	if newStatus != "" {
		d.Status = newStatus
		d.AnalysisError = nil
	}
	return nil
}

func (r *fakeDocumentRepo) Delete(ctx context.Context, id int64, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.UserID != userID {
		return false, nil
	}
	delete(r.docs, id)
	return true, nil
}

// seed stores doc as is and returns its id
func (r *fakeDocumentRepo) seed(doc *entity.Document) int64 {
	if err := r.Create(context.Background(), doc); err != nil {
		panic(err)
	}
	return doc.ID
}

type fakeTx struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return fn(ctx)
}

type fakeBlobStore struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string

	saveErr   error
	deleteErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{saved: make(map[string][]byte)}
}

func (b *fakeBlobStore) Save(ctx context.Context, filename, contentType string, content []byte) (*port.StoredBlob, error) {
	if b.saveErr != nil {
		return nil, b.saveErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := fmt.Sprintf("blob-%d-%s", len(b.saved)+1, filename)
	b.saved[id] = content
	return &port.StoredBlob{
		URL:         "https://cdn.example.com/image/upload/" + id,
		StorageID:   id,
		ContentType: contentType,
		Size:        int64(len(content)),
	}, nil
}

func (b *fakeBlobStore) Delete(ctx context.Context, storageID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, storageID)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.saved, storageID)
	return nil
}

type fetchResponse struct {
	content     []byte
	contentType string
	err         error
}

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]fetchResponse
	calls     []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	resp, ok := f.responses[url]
	if !ok {
		return nil, "", errors.New("404 not found")
	}
	return resp.content, resp.contentType, resp.err
}

type fakeExtractor struct {
	calls   atomic.Int32
	extract func(ctx context.Context, fileURL, mimeType string) (*port.ExtractionResult, error)
}

func (e *fakeExtractor) Extract(ctx context.Context, fileURL, mimeType string) (*port.ExtractionResult, error) {
	e.calls.Add(1)
	return e.extract(ctx, fileURL, mimeType)
}

func extractorReturning(m map[string]any) *fakeExtractor {
	return &fakeExtractor{extract: func(context.Context, string, string) (*port.ExtractionResult, error) {
		return port.ExtractionResultFromMap(m), nil
	}}
}

func extractorFailing(err error) *fakeExtractor {
	return &fakeExtractor{extract: func(context.Context, string, string) (*port.ExtractionResult, error) {
		return nil, err
	}}
}

type fakeMetrics struct {
	mu          sync.Mutex
	submitted   []string
	extractions []string
	downloads   []string
	tax         []string
}

func (m *fakeMetrics) DocumentSubmitted(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, status)
}

func (m *fakeMetrics) ExtractionObserved(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractions = append(m.extractions, outcome)
}

func (m *fakeMetrics) DownloadAttempted(strategy string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads = append(m.downloads, fmt.Sprintf("%s:%t", strategy, success))
}

func (m *fakeMetrics) TaxCalculated(recommendation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tax = append(m.tax, recommendation)
}

type fakeTaxRepo struct {
	mu        sync.Mutex
	records   []*entity.TaxCalculationRecord
	createErr error
}

func (r *fakeTaxRepo) Create(ctx context.Context, record *entity.TaxCalculationRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record.ID = int64(len(r.records) + 1)
	record.CreatedAt = time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(record.ID) * time.Second)
	r.records = append(r.records, record)
	return nil
}

func (r *fakeTaxRepo) ListByUser(ctx context.Context, userID string) ([]*entity.TaxCalculationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.TaxCalculationRecord, 0)
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].UserID == userID {
			out = append(out, r.records[i])
		}
	}
	return out, nil
}

func testRules() *auditrule.Engine {
	fy, err := entity.ParseFiscalYear("2025-2026")
	if err != nil {
		panic(err)
	}
	return auditrule.NewEngine(auditrule.DefaultRules(auditrule.Config{FiscalYear: fy})...)
}

var (
	_ port.DocumentRepository  = (*fakeDocumentRepo)(nil)
	_ port.TransactionManager  = (*fakeTx)(nil)
	_ port.BlobStore           = (*fakeBlobStore)(nil)
	_ port.Fetcher             = (*fakeFetcher)(nil)
	_ port.Extractor           = (*fakeExtractor)(nil)
	_ port.PipelineMetrics     = (*fakeMetrics)(nil)
	_ port.TaxRecordRepository = (*fakeTaxRepo)(nil)
)
