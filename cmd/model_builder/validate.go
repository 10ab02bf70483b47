package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/model-builder/internal/schemas"
	rootschemas "github.com/jonathan/model-builder/schemas"
)

var (
	validateSchema string
	validateJSON   string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a JSON document against a schema",
	Long: `Validates a JSON file against a schema file or one of the embedded schemas
(intent.schema.json, extraction_response.schema.json, training_response.schema.json,
build_session.schema.json).`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "Embedded schema name or path to a schema file (required)")
	validateCmd.Flags().StringVar(&validateJSON, "json", "", "Path to the JSON document (required)")
	for _, name := range []string{"schema", "json"} {
		if err := validateCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	err := validateDocument(validateSchema, validateJSON)
	var vErr *schemas.ValidationError
	if errors.As(err, &vErr) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Validation failed:\n%s\n", vErr.Summary())
		return fmt.Errorf("%s does not match %s", validateJSON, validateSchema)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Validation passed")
	return nil
}

// validateDocument prefers an embedded schema of that name over a file path
func validateDocument(schema, jsonPath string) error {
	content, err := rootschemas.Get(schema)
	if err != nil {
		return schemas.ValidateJSON(schema, jsonPath)
	}
	doc, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", jsonPath, err)
	}
	return schemas.ValidateJSONBytes(content, doc)
}
