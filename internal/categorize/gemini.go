package categorize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
)

// GeminiStrategy classifies receipts through Google Gemini.
type GeminiStrategy struct {
	client *genai.Client
	model  *genai.GenerativeModel
	log    *slog.Logger
}

func NewGeminiStrategy(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*GeminiStrategy, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	return &GeminiStrategy{client: client, model: model, log: logger}, nil
}

func (g *GeminiStrategy) Name() string { return "gemini" }

func (g *GeminiStrategy) Categorize(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	prompt := buildSystemPrompt() + "\n\n" + buildUserPrompt(req) +
		"\n\nJSON Schema:\n" + mustJSON(BuildClassificationJSONSchema())

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return Result{}, common.ProviderError("gemini classify", fmt.Errorf("generating content: %w", err))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Result{}, common.ProviderError("gemini classify", fmt.Errorf("no response from gemini"))
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	// Strip markdown fences some models still emit despite the MIME hint.
	text := strings.TrimSpace(responseText.String())
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	cls, err := decodeClassification([]byte(text))
	if err != nil {
		g.log.Error("categorize.gemini.schema_validation_failed", "error", err, "content", text)
		return Result{}, common.ProviderError("gemini classify", err)
	}

	category, confidence := resolveLabel(cls.Category, cls.Confidence)
	g.log.Info("categorize.gemini.ok",
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

// Close releases the underlying client.
func (g *GeminiStrategy) Close() error {
	return g.client.Close()
}
