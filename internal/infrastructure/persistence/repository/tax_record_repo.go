package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/open-audit/internal/application/port"
	"github.com/garyjia/open-audit/internal/domain/entity"
	"github.com/garyjia/open-audit/internal/infrastructure/persistence/sqlite"
)

// TaxRecordRepository implements port.TaxRecordRepository
type TaxRecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaxRecordRepository creates a new tax record repository
func NewTaxRecordRepository(db *sql.DB, logger *zap.Logger) port.TaxRecordRepository {
	return &TaxRecordRepository{db: db, logger: logger}
}

// Create appends a calculation record
func (r *TaxRecordRepository) Create(ctx context.Context, record *entity.TaxCalculationRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO tax_calculations (
			user_id, financial_year, annual_income, investments_80c, rent_paid,
			other_deductions, old_regime_taxable_income, new_regime_taxable_income,
			old_regime_tax, new_regime_tax, final_tax, savings, recommendation, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		record.UserID,
		record.FinancialYear,
		record.AnnualIncome.String(),
		record.Investments80C.String(),
		record.RentPaid.String(),
		record.OtherDeductions.String(),
		record.OldRegimeTaxableIncome.String(),
		record.NewRegimeTaxableIncome.String(),
		record.OldRegimeTax.String(),
		record.NewRegimeTax.String(),
		record.FinalTax.String(),
		record.Savings.String(),
		record.Recommendation,
		record.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create tax record", zap.String("user_id", record.UserID), zap.Error(err))
		return fmt.Errorf("failed to create tax record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	record.ID = id
	return nil
}

// ListByUser returns the user's records, newest first
func (r *TaxRecordRepository) ListByUser(ctx context.Context, userID string) ([]*entity.TaxCalculationRecord, error) {
	query := `
		SELECT id, user_id, financial_year, annual_income, investments_80c, rent_paid,
			other_deductions, old_regime_taxable_income, new_regime_taxable_income,
			old_regime_tax, new_regime_tax, final_tax, savings, recommendation, created_at
		FROM tax_calculations
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list tax records", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list tax records: %w", err)
	}
	defer rows.Close()

	records := make([]*entity.TaxCalculationRecord, 0)
	for rows.Next() {
		record, err := scanTaxRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tax record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tax records: %w", err)
	}
	return records, nil
}

func scanTaxRecord(row rowScanner) (*entity.TaxCalculationRecord, error) {
	var (
		record  entity.TaxCalculationRecord
		amounts [10]string
	)

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.FinancialYear,
		&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4],
		&amounts[5], &amounts[6], &amounts[7], &amounts[8], &amounts[9],
		&record.Recommendation,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	targets := []*decimal.Decimal{
		&record.AnnualIncome,
		&record.Investments80C,
		&record.RentPaid,
		&record.OtherDeductions,
		&record.OldRegimeTaxableIncome,
		&record.NewRegimeTaxableIncome,
		&record.OldRegimeTax,
		&record.NewRegimeTax,
		&record.FinalTax,
		&record.Savings,
	}
	for i, target := range targets {
		d, err := decimal.NewFromString(amounts[i])
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", amounts[i], err)
		}
		*target = d
	}

	return &record, nil
}

var _ port.TaxRecordRepository = (*TaxRecordRepository)(nil)
