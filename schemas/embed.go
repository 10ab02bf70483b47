// Package schemas embeds the JSON Schema documents that guard data crossing
// the backend boundary and the session persistence boundary.
package schemas

import (
	"embed"
	"fmt"
)

// Schema file names
const (
	Intent             = "intent.schema.json"
	ExtractionResponse = "extraction_response.schema.json"
	TrainingResponse   = "training_response.schema.json"
	BuildSession       = "build_session.schema.json"
)

//go:embed *.schema.json
var files embed.FS

// Get returns the content of an embedded schema file.
func Get(name string) (string, error) {
	data, err := files.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("schema %s not found: %w", name, err)
	}
	return string(data), nil
}

// MustGet is Get for schemas that are known to be embedded.
func MustGet(name string) string {
	s, err := Get(name)
	if err != nil {
		panic(err)
	}
	return s
}

// Names lists every embedded schema
func Names() []string {
	return []string{Intent, ExtractionResponse, TrainingResponse, BuildSession}
}
