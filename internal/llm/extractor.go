package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema describes the JSON document a model must return
type ExtractionSchema struct {
	Name        string
	Description string
	Fields      []SchemaField
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint shown to the model
	Description string
	Required    bool
}

// BuildExtractionPrompt renders the schema as an output contract followed by
// the input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString("Return ONLY valid JSON matching this structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		sb.WriteString(fmt.Sprintf("  %q: %s", field.Name, typeHint))
		if field.Required {
			sb.WriteString(" (required)")
		}
		if field.Description != "" {
			sb.WriteString(" // " + field.Description)
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("Rules:\n")
	sb.WriteString("- Leave a field out when the request does not determine it; do not guess defaults.\n")
	sb.WriteString("- Use only column names listed in the dataset description.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation.\n\n")

	sb.WriteString(inputText)
	if !strings.HasSuffix(inputText, "\n") {
		sb.WriteString("\n")
	}
	return sb.String()
}

// IntentSchema is the response contract for intent extraction
func IntentSchema() ExtractionSchema {
	return ExtractionSchema{
		Name:        "Intent",
		Description: "Structured description of a machine-learning task",
		Fields: []SchemaField{
			{
				Name: "intent",
				Type: `{"task": {"type": "regression|classification|clustering|timeseries", "metric": "string", ` +
					`"target_column": "string", "cv_folds": int, "test_size": float}, ` +
					`"preprocessing": {"missing_strategy": {"numeric": "mean|median|most_frequent|constant|drop", ` +
					`"categorical": "most_frequent|constant|drop"}, "scaling": "standard|minmax|robust|none", ` +
					`"encoding": "onehot|label"}, "search_space": {"models": [{"name": "string", "params": {}}]}}`,
				Description: "cv_folds >= 2, 0 < test_size < 1, model names unique",
				Required:    true,
			},
			{
				Name:        "warnings",
				Type:        `["string"]`,
				Description: "Ambiguities in the request the user should review",
			},
		},
	}
}
