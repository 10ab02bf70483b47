// Package schemas provides JSON Schema validation for documents crossing the
// backend and persistence boundaries.
package schemas

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError lists every place a document breaks its schema
type ValidationError struct {
	Errors []FieldError
}

// FieldError is one schema violation; Field is "(root)" for the document itself
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError means the schema itself could not be read or compiled
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, fe := range ve.Errors {
		fmt.Fprintf(&sb, "  %d. %s: %s\n", i+1, fe.Field, fe.Message)
	}
	return sb.String()
}

// Summary joins the field errors on one line, for user-facing messages
func (ve *ValidationError) Summary() string {
	parts := make([]string, 0, len(ve.Errors))
	for _, fe := range ve.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

// compiled schemas keyed by their source text. Backend responses are checked
// on every call, so each schema is compiled once.
var compiled sync.Map

func compile(name, content string) (*gojsonschema.Schema, error) {
	if s, ok := compiled.Load(content); ok {
		return s.(*gojsonschema.Schema), nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(content))
	if err != nil {
		return nil, &SchemaLoadError{Path: name, Message: "invalid schema", Cause: err}
	}
	actual, _ := compiled.LoadOrStore(content, s)
	return actual.(*gojsonschema.Schema), nil
}

// ValidateJSON validates a JSON file against a JSON Schema file
func ValidateJSON(schemaPath, jsonPath string) error {
	schema, err := os.ReadFile(schemaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("schema file not found: %s", schemaPath)
	}
	if err != nil {
		return &SchemaLoadError{Path: schemaPath, Message: "unreadable", Cause: err}
	}
	doc, err := os.ReadFile(jsonPath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("JSON file not found: %s", jsonPath)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", jsonPath, err)
	}
	return validate(schemaPath, string(schema), gojsonschema.NewBytesLoader(doc))
}

// ValidateJSONString validates JSON string content against schema string content
func ValidateJSONString(schemaContent, jsonContent string) error {
	return validate("(string schema)", schemaContent, gojsonschema.NewStringLoader(jsonContent))
}

// ValidateJSONBytes validates a raw JSON document against schema string content
func ValidateJSONBytes(schemaContent string, document []byte) error {
	return validate("(string schema)", schemaContent, gojsonschema.NewBytesLoader(document))
}

func validate(name, schemaContent string, document gojsonschema.JSONLoader) error {
	schema, err := compile(name, schemaContent)
	if err != nil {
		return err
	}
	result, err := schema.Validate(document)
	if err != nil {
		return fmt.Errorf("document is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		ve.Errors = append(ve.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	sort.SliceStable(ve.Errors, func(i, j int) bool { return ve.Errors[i].Field < ve.Errors[j].Field })
	return ve
}
