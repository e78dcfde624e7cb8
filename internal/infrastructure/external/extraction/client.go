// Package extraction is an HTTP client for a remote extraction service
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/garyjia/open-audit/internal/application/port"
)

const maxResponseBytes = 1 << 20

// Config configures the extraction client
type Config struct {
	URL               string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client implements port.Extractor by POSTing {"file_url","mime_type"} to the service
type Client struct {
	url     string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	schema  *jsonschema.Schema
	logger  *zap.Logger
}

type request struct {
	FileURL  string `json:"file_url"`
	MimeType string `json:"mime_type"`
}

// NewClient creates an extraction client. A zero RequestsPerSecond disables throttling.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("extraction service url is required")
	}
	schema, err := compileSchema(responseSchema)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		schema:  schema,
		logger:  logger,
	}, nil
}

// Extract asks the service for the fields of one stored file
func (c *Client) Extract(ctx context.Context, fileURL, mimeType string) (*port.ExtractionResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(request{FileURL: fileURL, MimeType: mimeType})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}

	fields, err := decodeResponse(c.schema, body)
	if err != nil {
		c.logger.Error("Invalid extraction response",
			zap.String("file_url", fileURL),
			zap.Error(err))
		return nil, err
	}

	c.logger.Debug("Extraction completed",
		zap.String("file_url", fileURL),
		zap.Duration("latency", time.Since(started)))

	return port.ExtractionResultFromMap(fields), nil
}

var _ port.Extractor = (*Client)(nil)
