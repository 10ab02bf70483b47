package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_IntentFile(t *testing.T) {
	s, err := Load("intent.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"dataset-sized", "dataset-unknown", "extract-intent", "extract-intent-system"}, s.Keys())

	again, err := Load("intent.json")
	require.NoError(t, err)
	assert.Same(t, s, again)

	tmpl, err := s.Template("extract-intent")
	require.NoError(t, err)
	assert.Equal(t, []string{"DatasetContext", "Prompt"}, tmpl.Fields)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("nonexistent.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet(t *testing.T) {
	text, err := Get("intent.json", "extract-intent-system")
	require.NoError(t, err)
	assert.Contains(t, text, "machine-learning engineer")

	_, err = Get("intent.json", "nonexistent-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestTemplate_Fill(t *testing.T) {
	tmpl := Template{Key: "greet", Text: "{{.Name}} trains {{.Model}}, {{.Name}}!", Fields: fieldsOf("{{.Name}} trains {{.Model}}, {{.Name}}!")}
	assert.Equal(t, []string{"Name", "Model"}, tmpl.Fields)

	out, err := tmpl.Fill(map[string]string{"Name": "Ada", "Model": "{{.Name}}", "Unused": "x"})
	require.NoError(t, err)
	assert.Equal(t, "Ada trains {{.Name}}, Ada!", out)

	_, err = tmpl.Fill(map[string]string{"Name": "Ada"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Model")
}

func TestRender(t *testing.T) {
	out, err := Render("intent.json", "dataset-unknown", map[string]string{"DatasetID": "4"})
	require.NoError(t, err)
	assert.Equal(t, "id 4, schema unknown", out)

	_, err = Render("intent.json", "dataset-sized", map[string]string{"DatasetID": "4"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Shape")
}
