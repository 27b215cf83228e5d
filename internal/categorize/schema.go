package categorize

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// classification is the structured reply both remote strategies request.
type classification struct {
	Category   string  `json:"category"`
	Confidence float32 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// BuildClassificationJSONSchema returns the JSON-Schema the remote reply
// must satisfy. Category is deliberately NOT enum-constrained here: an
// out-of-taxonomy label is coerced to Other rather than failing the call.
func BuildClassificationJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"category":   map[string]any{"type": "string", "minLength": 1},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"reasoning":  map[string]any{"type": "string"},
		},
		"required": []string{"category", "confidence"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// decodeClassification validates and decodes a remote JSON reply.
func decodeClassification(raw []byte) (classification, error) {
	if err := ValidateJSONAgainstSchema(BuildClassificationJSONSchema(), raw); err != nil {
		return classification{}, err
	}
	var out classification
	if err := json.Unmarshal(raw, &out); err != nil {
		return classification{}, fmt.Errorf("unmarshal classification: %w", err)
	}
	return out, nil
}
