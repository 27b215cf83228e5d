package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// TesseractExtractor runs OCR in-process through gosseract. It emits LINE
// fragments followed by WORD fragments, both in reading order, matching
// the fragment contract of hosted text-detection providers.
type TesseractExtractor struct {
	objects       ObjectStore
	languages     []string
	logger        *slog.Logger
	clientFactory func() *gosseract.Client
}

func NewTesseractExtractor(objects ObjectStore, languages []string, logger *slog.Logger) *TesseractExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractExtractor{
		objects:       objects,
		languages:     languages,
		logger:        logger,
		clientFactory: gosseract.NewClient,
	}
}

func (t *TesseractExtractor) Extract(ctx context.Context, sourceRef string) (Extraction, error) {
	start := time.Now()

	data, err := t.objects.Fetch(ctx, sourceRef)
	if err != nil {
		return Extraction{}, err
	}

	prepared, err := prepareImage(data)
	if err != nil {
		return Extraction{}, common.ProviderError("prepare image", err)
	}

	select {
	case <-ctx.Done():
		return Extraction{}, common.ProviderError("ocr", ctx.Err())
	default:
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(prepared); err != nil {
		return Extraction{}, common.ProviderError("set image", err)
	}
	if err := c.SetLanguage(t.languages...); err != nil {
		return Extraction{}, common.ProviderError("set languages", err)
	}

	var warnings []string
	fragments := make([]entity.TextFragment, 0, 64)

	lineBoxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return Extraction{}, common.ProviderError("recognize lines", err)
	}
	for _, b := range lineBoxes {
		fragments = append(fragments, boxToFragment(b, entity.GranularityLine))
	}

	wordBoxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Word detail is optional; line fragments are what the parser needs.
		warnings = append(warnings, "word boxes unavailable: "+err.Error())
	}
	for _, b := range wordBoxes {
		fragments = append(fragments, boxToFragment(b, entity.GranularityWord))
	}

	elapsed := time.Since(start)
	t.logger.Info("extract.ok",
		"job_id", common.JobIDFromContext(ctx),
		"source_ref", sourceRef,
		"lines", len(lineBoxes),
		"words", len(wordBoxes),
		"elapsed_ms", elapsed.Milliseconds(),
	)

	return Extraction{
		Fragments: fragments,
		Method:    "tesseract",
		Language:  strings.Join(t.languages, "+"),
		Duration:  elapsed,
		Warnings:  warnings,
	}, nil
}

func boxToFragment(b gosseract.BoundingBox, g entity.Granularity) entity.TextFragment {
	return entity.TextFragment{
		Granularity: g,
		Text:        b.Word,
		Geometry: &entity.Geometry{
			X:      float64(b.Box.Min.X),
			Y:      float64(b.Box.Min.Y),
			Width:  float64(b.Box.Dx()),
			Height: float64(b.Box.Dy()),
		},
		Confidence: float32(b.Confidence / 100.0),
	}
}
