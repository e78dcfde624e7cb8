package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/garyjia/open-audit/internal/domain/entity"
)

// Extraction providers
const (
	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Tax        TaxConfig        `mapstructure:"tax"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// StorageConfig holds blob storage and download configuration
type StorageConfig struct {
	Dir              string        `mapstructure:"dir"`
	PublicBaseURL    string        `mapstructure:"public_base_url"`
	PathPrefix       string        `mapstructure:"path_prefix"`
	TransformSegment string        `mapstructure:"transform_segment"`
	RawSegment       string        `mapstructure:"raw_segment"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
}

// ExtractionConfig selects and tunes the extraction adapter
type ExtractionConfig struct {
	Provider          string        `mapstructure:"provider"`
	URL               string        `mapstructure:"url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	Model       string `mapstructure:"model"`
	PromptsPath string `mapstructure:"prompts_path"`
}

// AuthConfig holds bearer token configuration
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// TaxConfig holds the label stored with tax calculations
type TaxConfig struct {
	FinancialYear string `mapstructure:"financial_year"`
}

// AuditConfig parameterizes the audit rules
type AuditConfig struct {
	FiscalYear          string   `mapstructure:"fiscal_year"`
	HighAmountThreshold string   `mapstructure:"high_amount_threshold"`
	RestrictedKeywords  []string `mapstructure:"restricted_keywords"`
	CaseSensitiveVendor bool     `mapstructure:"case_sensitive_vendor"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configuration from an optional YAML file and the environment.
// An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.path", "data/open-audit.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	// Storage defaults
	v.SetDefault("storage.dir", "data/blobs")
	v.SetDefault("storage.public_base_url", "http://localhost:8080/blobs")
	v.SetDefault("storage.path_prefix", "image/upload")
	v.SetDefault("storage.transform_segment", "/image/upload/")
	v.SetDefault("storage.raw_segment", "/raw/upload/")
	v.SetDefault("storage.fetch_timeout", 30*time.Second)

	// Extraction defaults
	v.SetDefault("extraction.provider", ProviderHTTP)
	v.SetDefault("extraction.timeout", 30*time.Second)
	v.SetDefault("extraction.requests_per_second", 5)
	v.SetDefault("extraction.burst", 5)

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o")

	// Auth defaults
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	// Tax and audit defaults
	v.SetDefault("tax.financial_year", "2025-2026")
	v.SetDefault("audit.fiscal_year", "2025-2026")
	v.SetDefault("audit.high_amount_threshold", "20000")
	v.SetDefault("audit.restricted_keywords", []string{"bar", "pub", "spa", "movie", "cinema", "netflix"})
	v.SetDefault("audit.case_sensitive_vendor", false)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the conventional environment variable names
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("extraction.url", "EXTRACTION_URL")
	v.BindEnv("extraction.api_key", "EXTRACTION_API_KEY")
	v.BindEnv("database.path", "DATABASE_PATH")
	v.BindEnv("server.port", "PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	switch c.Extraction.Provider {
	case ProviderHTTP:
		if c.Extraction.URL == "" {
			return fmt.Errorf("extraction.url is required for the http provider")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("extraction.provider must be %q or %q", ProviderHTTP, ProviderOpenAI)
	}

	if _, err := entity.ParseFiscalYear(c.Tax.FinancialYear); err != nil {
		return fmt.Errorf("tax.financial_year: %w", err)
	}
	if _, err := c.Audit.FiscalYearRange(); err != nil {
		return err
	}
	if _, err := c.Audit.Threshold(); err != nil {
		return err
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console")
	}

	return nil
}

// FiscalYearRange parses audit.fiscal_year
func (a AuditConfig) FiscalYearRange() (entity.FiscalYear, error) {
	fy, err := entity.ParseFiscalYear(a.FiscalYear)
	if err != nil {
		return entity.FiscalYear{}, fmt.Errorf("audit.fiscal_year: %w", err)
	}
	return fy, nil
}

// Threshold parses audit.high_amount_threshold
func (a AuditConfig) Threshold() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(a.HighAmountThreshold))
	if err != nil || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("audit.high_amount_threshold must be a non-negative number")
	}
	return d, nil
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
