package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema accepts the six extraction fields, each nullable. Amounts and
// confidence may arrive as numbers or numeric strings.
var responseSchema = map[string]any{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type":    "object",
	"properties": map[string]any{
		"amount":           map[string]any{"type": []any{"number", "string", "null"}},
		"date":             map[string]any{"type": []any{"string", "null"}},
		"vendor":           map[string]any{"type": []any{"string", "null"}},
		"category":         map[string]any{"type": []any{"string", "null"}},
		"confidence_score": map[string]any{"type": []any{"number", "string", "null"}},
		"audit_notes":      map[string]any{"type": []any{"string", "null"}},
	},
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("extraction.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// decodeResponse validates body against schema and returns it as a generic map.
// Numbers are kept as json.Number so amounts do not lose precision.
func decodeResponse(schema *jsonschema.Schema, body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("response does not match schema: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("response is not an object")
	}
	return m, nil
}
