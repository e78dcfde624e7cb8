package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/garyjia/open-audit/internal/application/port"
	"github.com/garyjia/open-audit/internal/domain/entity"
	"github.com/garyjia/open-audit/internal/domain/taxengine"
)

// TaxInput is the raw calculation request; values may be numbers, numeric strings
// or absent.
type TaxInput struct {
	AnnualIncome    any
	Investments     any
	RentPaid        any
	OtherDeductions any
}

// TaxCalculation is a regime comparison and the record saved for it
type TaxCalculation struct {
	Result taxengine.Result
	Record *entity.TaxCalculationRecord
}

// TaxService compares tax regimes and keeps a per-user history
type TaxService interface {
	Calculate(ctx context.Context, identity entity.Identity, input TaxInput) (*TaxCalculation, error)
	History(ctx context.Context, identity entity.Identity) ([]*entity.TaxCalculationRecord, error)
}

type taxServiceImpl struct {
	repo          port.TaxRecordRepository
	financialYear string
	metrics       port.PipelineMetrics
	logger        Logger
}

// NewTaxService creates a new TaxService recording calculations under financialYear
func NewTaxService(repo port.TaxRecordRepository, financialYear string, metrics port.PipelineMetrics, logger Logger) TaxService {
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &taxServiceImpl{
		repo:          repo,
		financialYear: financialYear,
		metrics:       metrics,
		logger:        logger,
	}
}

// Calculate coerces the inputs, compares both regimes and appends a history record.
// Unparsable or negative inputs count as zero.
func (s *taxServiceImpl) Calculate(ctx context.Context, identity entity.Identity, input TaxInput) (*TaxCalculation, error) {
	if identity.UserID == "" {
		return nil, ErrUnauthenticated
	}

	in := taxengine.Input{
		AnnualIncome:    taxengine.ParseNonNegativeDecimalOrDefault(input.AnnualIncome, decimal.Zero),
		Investments80C:  taxengine.ParseNonNegativeDecimalOrDefault(input.Investments, decimal.Zero),
		RentPaid:        taxengine.ParseNonNegativeDecimalOrDefault(input.RentPaid, decimal.Zero),
		OtherDeductions: taxengine.ParseNonNegativeDecimalOrDefault(input.OtherDeductions, decimal.Zero),
	}
	result := taxengine.Compute(in)

	record := &entity.TaxCalculationRecord{
		UserID:                 identity.UserID,
		FinancialYear:          s.financialYear,
		AnnualIncome:           in.AnnualIncome,
		Investments80C:         in.Investments80C,
		RentPaid:               in.RentPaid,
		OtherDeductions:        in.OtherDeductions,
		OldRegimeTaxableIncome: result.Old.TaxableIncome,
		NewRegimeTaxableIncome: result.New.TaxableIncome,
		OldRegimeTax:           result.Old.Tax,
		NewRegimeTax:           result.New.Tax,
		FinalTax:               result.FinalTax,
		Savings:                result.Savings,
		Recommendation:         result.Recommendation.String(),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("Failed to save tax calculation", "user_id", identity.UserID, "stage", "persist", "error", err)
		return nil, persistenceError("save tax calculation", err)
	}

	s.metrics.TaxCalculated(record.Recommendation)
	s.logger.Info("Tax calculated",
		"user_id", identity.UserID, "record_id", record.ID, "recommendation", record.Recommendation)

	return &TaxCalculation{Result: result, Record: record}, nil
}

// History returns the caller's calculations, newest first
func (s *taxServiceImpl) History(ctx context.Context, identity entity.Identity) ([]*entity.TaxCalculationRecord, error) {
	if identity.UserID == "" {
		return nil, ErrUnauthenticated
	}
	records, err := s.repo.ListByUser(ctx, identity.UserID)
	if err != nil {
		return nil, persistenceError("list tax history", err)
	}
	return records, nil
}
