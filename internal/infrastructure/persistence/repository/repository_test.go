package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/open-audit/internal/domain/entity"
	"github.com/garyjia/open-audit/migrations"
	"github.com/garyjia/open-audit/pkg/database"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(ctx, database.Config{Path: filepath.Join(t.TempDir(), "repo.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.NewMigrator(db, zap.NewNop()).RunMigrations(ctx, migrations.FS)
	require.NoError(t, err)
	return db
}

func strPtr(s string) *string { return &s }

func newPendingDocument(userID string) *entity.Document {
	return &entity.Document{
		UserID:       userID,
		FileURL:      "http://localhost:8080/blobs/abc.pdf",
		StorageID:    "abc.pdf",
		MimeType:     entity.MimeTypePDF,
		DocumentType: "invoice",
		Status:       entity.DocumentStatusPending,
	}
}

func TestDocumentRepository_RoundTripPending(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(setupTestDB(t).DB, zap.NewNop())

	doc := newPendingDocument("user-1")
	doc.UploadedAt = time.Date(2025, 6, 7, 10, 30, 0, 123000000, time.UTC)
	require.NoError(t, repo.Create(ctx, doc))
	require.NotZero(t, doc.ID)

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.UserID, got.UserID)
	assert.Equal(t, doc.FileURL, got.FileURL)
	assert.Equal(t, doc.StorageID, got.StorageID)
	assert.Equal(t, doc.MimeType, got.MimeType)
	assert.Equal(t, doc.DocumentType, got.DocumentType)
	assert.Equal(t, entity.DocumentStatusPending, got.Status)
	assert.False(t, got.ExtractedAmount.Valid)
	assert.Nil(t, got.ExtractedDate)
	assert.Nil(t, got.ExtractedVendor)
	assert.Nil(t, got.Category)
	assert.Nil(t, got.ConfidenceScore)
	assert.Nil(t, got.AuditNotes)
	assert.Nil(t, got.AnalysisError)
	assert.True(t, doc.UploadedAt.Equal(got.UploadedAt), "uploaded_at %v != %v", doc.UploadedAt, got.UploadedAt)
}

func TestDocumentRepository_CompleteAnalysis(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(setupTestDB(t).DB, zap.NewNop())

	doc := newPendingDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))

	confidence := 0.92
	fields := entity.ExtractionFields{
		Amount:     decimal.NewNullDecimal(decimal.RequireFromString("1234.56")),
		Date:       strPtr("2025-06-07"),
		Vendor:     strPtr("Acme Stationers"),
		Category:   strPtr("80C"),
		Confidence: &confidence,
		AuditNotes: nil,
	}

	ok, err := repo.CompleteAnalysis(ctx, doc.ID, entity.DocumentStatusPending, fields)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByIDForUser(ctx, doc.ID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.DocumentStatusAnalyzed, got.Status)
	assert.True(t, got.ExtractedAmount.Valid)
	assert.True(t, got.ExtractedAmount.Decimal.Equal(decimal.RequireFromString("1234.56")))
	assert.Equal(t, "2025-06-07", *got.ExtractedDate)
	assert.Equal(t, "Acme Stationers", *got.ExtractedVendor)
	assert.Equal(t, "80C", *got.Category)
	assert.InDelta(t, 0.92, *got.ConfidenceScore, 1e-9)
	assert.Nil(t, got.AuditNotes)

	// A second writer expecting PENDING must not regress the row.
	ok, err = repo.CompleteAnalysis(ctx, doc.ID, entity.DocumentStatusPending, entity.ExtractionFields{})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkFailed(ctx, doc.ID, "late failure")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocumentRepository_CompleteAnalysisAfterDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(setupTestDB(t).DB, zap.NewNop())

	doc := newPendingDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))

	deleted, err := repo.Delete(ctx, doc.ID, "user-1")
	require.NoError(t, err)
	require.True(t, deleted)

	ok, err := repo.CompleteAnalysis(ctx, doc.ID, entity.DocumentStatusPending, entity.ExtractionFields{})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDocumentRepository_MarkFailedThenRetry(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(setupTestDB(t).DB, zap.NewNop())

	doc := newPendingDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))

	ok, err := repo.MarkFailed(ctx, doc.ID, "extraction timed out")
	require.NoError(t, err)
	require.True(t, ok)

	failed, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusFailed, failed.Status)
	require.NotNil(t, failed.AnalysisError)
	assert.Equal(t, "extraction timed out", *failed.AnalysisError)

	ok, err = repo.CompleteAnalysis(ctx, doc.ID, entity.DocumentStatusFailed, entity.ExtractionFields{Vendor: strPtr("Retry Vendor")})
	require.NoError(t, err)
	require.True(t, ok)

	analyzed, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusAnalyzed, analyzed.Status)
	assert.Nil(t, analyzed.AnalysisError)
}

func TestDocumentRepository_Ownership(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(setupTestDB(t).DB, zap.NewNop())

	doc := newPendingDocument("owner")
	require.NoError(t, repo.Create(ctx, doc))

	got, err := repo.GetByIDForUser(ctx, doc.ID, "intruder")
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err := repo.Delete(ctx, doc.ID, "intruder")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDocumentRepository_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(setupTestDB(t).DB, zap.NewNop())

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	seed := []struct {
		vendor   string
		category string
	}{
		{"Apollo Pharmacy", "80D"},
		{"LIC Premium", "80C"},
		{"apollo hospitals", "80D"},
		{"100%_Pure Foods", "Food"},
	}
	for i, s := range seed {
		doc := newPendingDocument("user-1")
		doc.UploadedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Create(ctx, doc))
		ok, err := repo.CompleteAnalysis(ctx, doc.ID, entity.DocumentStatusPending, entity.ExtractionFields{
			Vendor:   strPtr(s.vendor),
			Category: strPtr(s.category),
		})
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, repo.Create(ctx, newPendingDocument("user-2")))

	all, err := repo.List(ctx, entity.DocumentFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "100%_Pure Foods", *all[0].ExtractedVendor, "newest first")

	apollo, err := repo.List(ctx, entity.DocumentFilter{UserID: "user-1", Search: "APOLLO"})
	require.NoError(t, err)
	assert.Len(t, apollo, 2)

	medical, err := repo.List(ctx, entity.DocumentFilter{UserID: "user-1", Search: "apollo", Category: "80D"})
	require.NoError(t, err)
	assert.Len(t, medical, 2)

	literal, err := repo.List(ctx, entity.DocumentFilter{UserID: "user-1", Search: "%_"})
	require.NoError(t, err)
	require.Len(t, literal, 1)
	assert.Equal(t, "100%_Pure Foods", *literal[0].ExtractedVendor)

	none, err := repo.List(ctx, entity.DocumentFilter{UserID: "user-3"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestDocumentRepository_UpdateFields(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(setupTestDB(t).DB, zap.NewNop())

	doc := newPendingDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))

	amount := decimal.RequireFromString("999.99")
	patch := entity.DocumentPatch{
		Vendor:   strPtr("Manual Vendor"),
		Amount:   &amount,
		Date:     strPtr("2025-07-01"),
		Category: strPtr("HRA"),
	}
	require.NoError(t, repo.UpdateFields(ctx, doc.ID, patch, entity.DocumentStatusAnalyzed))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusAnalyzed, got.Status)
	assert.Equal(t, "Manual Vendor", *got.ExtractedVendor)
	assert.True(t, got.ExtractedAmount.Decimal.Equal(amount))

	// Partial edit leaves other fields alone.
	require.NoError(t, repo.UpdateFields(ctx, doc.ID, entity.DocumentPatch{Category: strPtr("80C")}, ""))
	got, err = repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "80C", *got.Category)
	assert.Equal(t, "Manual Vendor", *got.ExtractedVendor)
	assert.Equal(t, "2025-07-01", *got.ExtractedDate)
}

func TestDocumentRepository_ListByStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(setupTestDB(t).DB, zap.NewNop())

	for i := 0; i < 3; i++ {
		doc := newPendingDocument("user-1")
		require.NoError(t, repo.Create(ctx, doc))
		if i > 0 {
			_, err := repo.MarkFailed(ctx, doc.ID, "boom")
			require.NoError(t, err)
		}
	}

	failed, err := repo.ListByStatus(ctx, entity.DocumentStatusFailed, 10)
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	limited, err := repo.ListByStatus(ctx, entity.DocumentStatusFailed, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDocumentRepository_ListByStatus_ZeroLimitReturnsAll(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(setupTestDB(t).DB, zap.NewNop())

	for i := 0; i < 120; i++ {
		require.NoError(t, repo.Create(ctx, newPendingDocument("user-1")))
	}

	all, err := repo.ListByStatus(ctx, entity.DocumentStatusPending, 0)
	require.NoError(t, err)
	assert.Len(t, all, 120)
	assert.Less(t, all[0].ID, all[119].ID, "oldest first")

	capped, err := repo.ListByStatus(ctx, entity.DocumentStatusPending, 50)
	require.NoError(t, err)
	assert.Len(t, capped, 50)
}

func TestTaxRecordRepository_CreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewTaxRecordRepository(setupTestDB(t).DB, zap.NewNop())

	base := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		record := &entity.TaxCalculationRecord{
			UserID:                 "user-1",
			FinancialYear:          "2025-2026",
			AnnualIncome:           decimal.NewFromInt(int64(1000000 + i)),
			Investments80C:         decimal.NewFromInt(150000),
			RentPaid:               decimal.Zero,
			OtherDeductions:        decimal.RequireFromString("2500.50"),
			OldRegimeTaxableIncome: decimal.NewFromInt(797499),
			NewRegimeTaxableIncome: decimal.NewFromInt(925000),
			OldRegimeTax:           decimal.RequireFromString("71999.9"),
			NewRegimeTax:           decimal.NewFromInt(42500),
			FinalTax:               decimal.NewFromInt(42500),
			Savings:                decimal.RequireFromString("29499.9"),
			Recommendation:         "New Regime",
			CreatedAt:              base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, record))
		assert.NotZero(t, record.ID)
	}
	require.NoError(t, repo.Create(ctx, &entity.TaxCalculationRecord{
		UserID: "user-2", FinancialYear: "2025-2026", Recommendation: "Old Regime",
	}))

	history, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.True(t, history[0].AnnualIncome.Equal(decimal.NewFromInt(1000002)), "newest first")
	assert.True(t, history[2].AnnualIncome.Equal(decimal.NewFromInt(1000000)))
	assert.True(t, history[0].OtherDeductions.Equal(decimal.RequireFromString("2500.50")))
	assert.True(t, history[0].Savings.Equal(decimal.RequireFromString("29499.9")))
	assert.Equal(t, "New Regime", history[0].Recommendation)

	empty, err := repo.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
