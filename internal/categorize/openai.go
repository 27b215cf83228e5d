package categorize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
)

// OpenAIConfig for the OpenAI-compatible classification client.
type OpenAIConfig struct {
	APIKey      string        // falls back to env handling in common.LoadConfig
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g. "gpt-4o-mini"
	Temperature float32       // low for deterministic categorization
	Timeout     time.Duration // http client timeout
}

// OpenAIStrategy issues a single chat/completions call per receipt and
// validates the structured reply locally.
type OpenAIStrategy struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	log        *slog.Logger
}

func NewOpenAIStrategy(cfg OpenAIConfig, logger *slog.Logger) *OpenAIStrategy {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIStrategy{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

func (c *OpenAIStrategy) Name() string { return "openai" }

func (c *OpenAIStrategy) Categorize(ctx context.Context, req Request) (Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("categorize.remote.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"merchant", req.Merchant,
		"items", len(req.ItemDescriptions),
	)

	schema := BuildClassificationJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildSystemPrompt()},
			{"role": "user", "content": buildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.log.Error("categorize.remote.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, common.ProviderError("openai classify", httpErr)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("categorize.remote.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
		)
		return Result{}, common.ProviderError("openai classify", fmt.Errorf("decode response: %w", err))
	}
	if len(cc.Choices) == 0 {
		return Result{}, common.ProviderError("openai classify", fmt.Errorf("no choices in response"))
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	cls, err := decodeClassification([]byte(content))
	if err != nil {
		c.log.Error("categorize.remote.schema_validation_failed",
			"req_id", rid, "error", err, "content", content,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, common.ProviderError("openai classify", err)
	}

	category, confidence := resolveLabel(cls.Category, cls.Confidence)
	if category == constants.Other && cls.Category != string(constants.Other) {
		c.log.Warn("categorize.remote.label_coerced",
			"req_id", rid, "label", cls.Category)
	}

	c.log.Info("categorize.remote.ok",
		"req_id", rid,
		"category", string(category),
		"confidence", confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{
		Category:   category,
		Confidence: confidence,
		Reasoning:  cls.Reasoning,
		Method:     constants.MethodRemoteModel,
	}, nil
}

func (c *OpenAIStrategy) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
