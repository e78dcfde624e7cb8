// Package container provides dependency injection and lifecycle management
// for the audit service following Clean Architecture principles.
package container

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/open-audit/internal/application/port"
	"github.com/garyjia/open-audit/internal/application/service"
	"github.com/garyjia/open-audit/internal/config"
	"github.com/garyjia/open-audit/internal/domain/auditrule"
	"github.com/garyjia/open-audit/internal/infrastructure/auth"
	"github.com/garyjia/open-audit/internal/infrastructure/external/extraction"
	"github.com/garyjia/open-audit/internal/infrastructure/external/openai"
	"github.com/garyjia/open-audit/internal/infrastructure/persistence/repository"
	"github.com/garyjia/open-audit/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/open-audit/internal/infrastructure/storage"
	"github.com/garyjia/open-audit/migrations"
	"github.com/garyjia/open-audit/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	Blobs   *storage.LocalBlobStore
	Fetcher *storage.HTTPFetcher
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	db, err := database.New(ctx, database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(db, logger).RunMigrations(ctx, migrations.FS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("Migrations applied", zap.Ints("versions", applied))
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &RepositoryBundle{
		Documents:  repository.NewDocumentRepository(db.DB, logger),
		TaxRecords: repository.NewTaxRecordRepository(db.DB, logger),
	}, nil
}

// ProvideStorage creates the blob store and the download fetcher.
func ProvideStorage(cfg *config.StorageConfig, maxBytes int64, logger *zap.Logger) (*StorageBundle, error) {
	blobs, err := storage.NewLocalBlobStore(storage.LocalBlobStoreConfig{
		BaseDir:       cfg.Dir,
		PublicBaseURL: cfg.PublicBaseURL,
		PathPrefix:    cfg.PathPrefix,
	}, logger)
	if err != nil {
		return nil, err
	}
	return &StorageBundle{
		Blobs:   blobs,
		Fetcher: storage.NewHTTPFetcher(cfg.FetchTimeout, maxBytes, logger),
	}, nil
}

// ProvideExtractor creates the configured extraction adapter.
func ProvideExtractor(cfg *config.Config, fetcher port.Fetcher, logger *zap.Logger) (port.Extractor, error) {
	switch cfg.Extraction.Provider {
	case config.ProviderOpenAI:
		prompts, err := openai.LoadPrompts(cfg.OpenAI.PromptsPath)
		if err != nil {
			return nil, err
		}
		client := openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		})
		return openai.NewExtractor(client, fetcher, prompts, cfg.OpenAI.Model, logger), nil
	case config.ProviderHTTP:
		client, err := extraction.NewClient(extraction.Config{
			URL:               cfg.Extraction.URL,
			APIKey:            cfg.Extraction.APIKey,
			Timeout:           cfg.Extraction.Timeout,
			RequestsPerSecond: cfg.Extraction.RequestsPerSecond,
			Burst:             cfg.Extraction.Burst,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown extraction provider %q", cfg.Extraction.Provider)
}

// ProvideRules builds the audit rule engine from configuration.
func ProvideRules(cfg *config.AuditConfig) (*auditrule.Engine, error) {
	fy, err := cfg.FiscalYearRange()
	if err != nil {
		return nil, err
	}
	threshold, err := cfg.Threshold()
	if err != nil {
		return nil, err
	}
	return auditrule.NewEngine(auditrule.DefaultRules(auditrule.Config{
		FiscalYear:          fy,
		HighAmountThreshold: threshold,
		RestrictedKeywords:  cfg.RestrictedKeywords,
		CaseSensitiveVendor: cfg.CaseSensitiveVendor,
	})...), nil
}

// ProvideTokenService creates the bearer token validator.
func ProvideTokenService(cfg *config.AuthConfig) (*auth.TokenService, error) {
	return auth.NewTokenService(cfg.JWTSecret, cfg.Issuer, cfg.TokenTTL)
}

// ServiceDeps holds dependencies for creating application services.
type ServiceDeps struct {
	Config    *config.Config
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Storage   *StorageBundle
	Extractor port.Extractor
	Rules     *auditrule.Engine
	Metrics   port.PipelineMetrics
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.Storage == nil || deps.Extractor == nil {
		return nil, fmt.Errorf("service dependencies are incomplete")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger}
	extractionTimeout := deps.Config.Extraction.Timeout
	if extractionTimeout <= 0 {
		extractionTimeout = 30 * time.Second
	}

	documents := service.NewDocumentService(
		deps.Repos.Documents,
		deps.TxManager,
		deps.Storage.Blobs,
		deps.Storage.Fetcher,
		deps.Extractor,
		deps.Rules,
		deps.Metrics,
		logger,
		service.DocumentServiceConfig{
			ExtractionTimeout: extractionTimeout,
			MaxUploadBytes:    deps.Config.Server.MaxUploadBytes,
			Strategies: service.DefaultStrategies(
				deps.Config.Storage.TransformSegment,
				deps.Config.Storage.RawSegment,
			),
		},
	)
	tax := service.NewTaxService(deps.Repos.TaxRecords, deps.Config.Tax.FinancialYear, deps.Metrics, logger)

	return &ServiceBundle{Documents: documents, Tax: tax}, nil
}
