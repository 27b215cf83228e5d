package pipeline

import (
	"encoding/json"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// DecodeTrigger parses and validates a JSON trigger payload. Malformed
// payloads are validation errors: the caller skips them without retry.
func DecodeTrigger(payload []byte) (entity.JobTrigger, error) {
	var t entity.JobTrigger
	if err := json.Unmarshal(payload, &t); err != nil {
		return entity.JobTrigger{}, common.ValidationErrorf("malformed trigger payload: %v", err)
	}
	if err := t.Validate(); err != nil {
		return entity.JobTrigger{}, err
	}
	return t, nil
}
