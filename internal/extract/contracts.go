package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// TextExtractor is the pipeline's boundary to the OCR provider: a storage
// reference in, an ordered fragment list out. Failures surface as provider
// errors; the pipeline does not retry internally.
type TextExtractor interface {
	Extract(ctx context.Context, sourceRef string) (Extraction, error)
}

type Extraction struct {
	Fragments []entity.TextFragment
	Method    string // "tesseract"
	Language  string
	Duration  time.Duration
	Warnings  []string
}

// Lines returns only the LINE-granularity fragments, in provider order.
func (e Extraction) Lines() []entity.TextFragment {
	out := make([]entity.TextFragment, 0, len(e.Fragments))
	for _, f := range e.Fragments {
		if f.Granularity == entity.GranularityLine {
			out = append(out, f)
		}
	}
	return out
}

// ObjectStore resolves a trigger's source reference to raw image bytes.
type ObjectStore interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// ArtifactStore persists raw extraction output for audit.
type ArtifactStore interface {
	SaveRaw(ctx context.Context, jobID string, fragments []entity.TextFragment) (string, error)
}
