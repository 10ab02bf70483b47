package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/model-builder/internal/db"
	"github.com/jonathan/model-builder/internal/schemas"
	rootschemas "github.com/jonathan/model-builder/schemas"
)

func TestValidateDocument(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"task": {"type": "classification", "target_column": "churn"}}`), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte(`{"task": "classification"}`), 0o644))

	t.Run("embedded schema", func(t *testing.T) {
		assert.NoError(t, validateDocument(rootschemas.Intent, good))
	})

	t.Run("embedded schema rejects", func(t *testing.T) {
		err := validateDocument(rootschemas.Intent, bad)
		var vErr *schemas.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.NotEmpty(t, vErr.Errors)
	})

	t.Run("schema file", func(t *testing.T) {
		schemaPath := filepath.Join("..", "..", "schemas", rootschemas.Intent)
		assert.NoError(t, validateDocument(schemaPath, good))
	})

	t.Run("missing document", func(t *testing.T) {
		assert.Error(t, validateDocument(rootschemas.Intent, filepath.Join(dir, "missing.json")))
	})
}

func TestParseModelID(t *testing.T) {
	id, err := parseModelID("42")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	for _, bad := range []string{"0", "-3", "abc", ""} {
		_, err := parseModelID(bad)
		assert.Error(t, err, bad)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a, ,http://b "))
	assert.Nil(t, splitList(""))
}

func TestWriteSessions(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeSessions(&out, nil))
	assert.Equal(t, "No saved sessions\n", out.String())

	out.Reset()
	modelID := 9
	id := uuid.New()
	require.NoError(t, writeSessions(&out, []db.SessionSummary{
		{ID: id, ProjectID: 3, Phase: "completed", ModelID: &modelID, UpdatedAt: time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)},
		{ID: uuid.New(), ProjectID: 3, Phase: "reviewing_intent"},
	}))
	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "PHASE")
	assert.Contains(t, string(lines[1]), id.String())
	assert.Contains(t, string(lines[1]), "2026-01-02 03:04")
	assert.Contains(t, string(lines[2]), " - ")
}

func TestWriteEvents(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeEvents(&out, []db.SessionEvent{
		{Event: "submit", Phase: "resolving_dataset", Message: "Resolving dataset"},
		{Event: "resolved", Phase: "extracting_intent", Message: "Using dataset 7"},
	}))
	assert.Contains(t, out.String(), "submit")
	assert.Contains(t, out.String(), "Using dataset 7")
}
