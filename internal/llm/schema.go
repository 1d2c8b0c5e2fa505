package llm

import (
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// jsonSchema is the subset of JSON Schema the provider understands.
type jsonSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Enum        []string               `json:"enum"`
	Required    []string               `json:"required"`
	Properties  map[string]*jsonSchema `json:"properties"`
	Items       *jsonSchema            `json:"items"`
}

// SchemaFromJSON converts a JSON Schema document into a response schema.
// Keywords the provider rejects, such as format and additionalProperties,
// are dropped; validation of those happens after generation.
func SchemaFromJSON(data []byte) (*genai.Schema, error) {
	var s jsonSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse response schema: %w", err)
	}
	return convertSchema(&s)
}

func convertSchema(s *jsonSchema) (*genai.Schema, error) {
	if s == nil {
		return nil, nil
	}
	t, err := schemaType(s.Type)
	if err != nil {
		return nil, err
	}
	out := &genai.Schema{
		Type:        t,
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			converted, err := convertSchema(prop)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", name, err)
			}
			out.Properties[name] = converted
		}
	}
	if s.Items != nil {
		items, err := convertSchema(s.Items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		out.Items = items
	}
	return out, nil
}

func schemaType(t string) (genai.Type, error) {
	switch t {
	case "object":
		return genai.TypeObject, nil
	case "array":
		return genai.TypeArray, nil
	case "string":
		return genai.TypeString, nil
	case "integer":
		return genai.TypeInteger, nil
	case "number":
		return genai.TypeNumber, nil
	case "boolean":
		return genai.TypeBoolean, nil
	default:
		return genai.TypeUnspecified, fmt.Errorf("unsupported schema type %q", t)
	}
}
