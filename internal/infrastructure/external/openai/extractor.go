// Package openai extracts document fields with an OpenAI vision model
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/open-audit/internal/application/port"
)

// ChatClient is the part of the OpenAI client the extractor uses
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config configures the OpenAI extractor
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Extractor implements port.Extractor. It downloads the stored file, renders PDFs to
// JPEG and sends the image to a vision model.
type Extractor struct {
	client  ChatClient
	fetcher port.Fetcher
	prompts *PromptConfig
	model   string
	render  func(pdf []byte) ([]byte, error)
	logger  *zap.Logger
}

// NewClient builds an OpenAI client, honoring a custom base URL
func NewClient(cfg Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// NewExtractor creates a new OpenAI extractor
func NewExtractor(client ChatClient, fetcher port.Fetcher, prompts *PromptConfig, model string, logger *zap.Logger) *Extractor {
	if model == "" {
		model = openai.GPT4o
	}
	return &Extractor{
		client:  client,
		fetcher: fetcher,
		prompts: prompts,
		model:   model,
		render:  renderFirstPage,
		logger:  logger,
	}
}

// Extract reads the fields of the file stored at fileURL
func (e *Extractor) Extract(ctx context.Context, fileURL, mimeType string) (*port.ExtractionResult, error) {
	content, fetchedType, err := e.fetcher.Fetch(ctx, fileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file: %w", err)
	}
	if mimeType == "" {
		mimeType = fetchedType
	}

	imageData, imageType := content, mimeType
	if strings.HasPrefix(mimeType, "application/pdf") {
		imageData, err = e.render(content)
		if err != nil {
			return nil, fmt.Errorf("failed to convert PDF: %w", err)
		}
		imageType = "image/jpeg"
	}

	prompt, err := renderTemplate(e.prompts.Extraction.UserTemplate, struct{ MimeType string }{mimeType})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Extracting document with Vision API",
		zap.String("file_url", fileURL),
		zap.String("mime_type", mimeType))

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   e.prompts.Extraction.MaxTokens,
		Temperature: e.prompts.Extraction.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: e.prompts.Extraction.System,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    fmt.Sprintf("data:%s;base64,%s", imageType, base64.StdEncoding.EncodeToString(imageData)),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("Vision API call failed", zap.Error(err))
		return nil, fmt.Errorf("vision API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from Vision API")
	}

	fields, err := parseFields(resp.Choices[0].Message.Content)
	if err != nil {
		e.logger.Error("Failed to parse Vision API response",
			zap.Error(err),
			zap.String("content", resp.Choices[0].Message.Content))
		return nil, err
	}
	return port.ExtractionResultFromMap(fields), nil
}

// parseFields decodes the model answer, falling back to the first JSON object
// embedded in surrounding text or code fences
func parseFields(content string) (map[string]any, error) {
	decode := func(s string) (map[string]any, error) {
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
		return m, nil
	}

	m, err := decode(content)
	if err == nil {
		return m, nil
	}
	if jsonStr := extractJSON(content); jsonStr != "" {
		if m, innerErr := decode(jsonStr); innerErr == nil {
			return m, nil
		}
	}
	return nil, fmt.Errorf("failed to parse response: %w", err)
}

// extractJSON returns the first balanced {...} object in content
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

var _ port.Extractor = (*Extractor)(nil)
