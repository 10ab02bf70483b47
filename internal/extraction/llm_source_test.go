package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/model-builder/internal/backend"
	"github.com/jonathan/model-builder/internal/dataset"
	"github.com/jonathan/model-builder/internal/llm"
	"github.com/jonathan/model-builder/internal/types"
)

type fakeLLM struct {
	system string
	prompt string
	tier   llm.ModelTier
	answer string
	err    error
}

func (f *fakeLLM) GenerateJSON(_ context.Context, system, prompt string, tier llm.ModelTier) (string, error) {
	f.system, f.prompt, f.tier = system, prompt, tier
	return f.answer, f.err
}

func (f *fakeLLM) Close() error { return nil }

type fakeDescriber struct {
	info *types.DatasetInfo
	err  error
}

func (f fakeDescriber) Describe(context.Context, int) (*types.DatasetInfo, error) {
	return f.info, f.err
}

func TestLLMSource_ExtractIntent(t *testing.T) {
	client := &fakeLLM{answer: "```json\n" + `{"intent": {"task": {"type": "classification", "target_column": "churn"}}, "warnings": ["metric not stated"]}` + "\n```"}
	info := &types.DatasetInfo{Shape: []int{100, 2}}
	src := NewLLMSource(client, "", fakeDescriber{info: info})

	resp, err := src.ExtractIntent(context.Background(), backend.ExtractIntentRequest{Prompt: "who will churn?", DatasetID: 8})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Nil(t, resp.ModelID)
	assert.False(t, resp.Validation.IsValid)
	assert.Equal(t, []string{"metric not stated"}, resp.Validation.Warnings)
	assert.Equal(t, info, resp.DatasetInfo)

	assert.Equal(t, llm.TierStandard, client.tier)
	assert.NotEmpty(t, client.system)
	assert.Contains(t, client.prompt, "who will churn?")
	assert.Contains(t, client.prompt, "id 8, 100 rows x 2 columns")
}

type pageLister []types.Dataset

func (p pageLister) ListDatasets(context.Context, int, int) (*types.DatasetPage, error) {
	return &types.DatasetPage{Count: len(p), Results: p}, nil
}

func TestLLMSource_DescribesCatalogDatasetSize(t *testing.T) {
	rows, cols := 250, 7
	catalog := dataset.NewCatalog(pageLister{{ID: 5, Rows: &rows, Columns: &cols}, {ID: 6}}, nil, nil)
	_, err := catalog.Refresh(context.Background(), 1)
	require.NoError(t, err)

	client := &fakeLLM{answer: `{"intent": {"task": {"type": "regression", "target_column": "y"}}}`}
	src := NewLLMSource(client, "", catalog)

	_, err = src.ExtractIntent(context.Background(), backend.ExtractIntentRequest{Prompt: "predict y", DatasetID: 5})
	require.NoError(t, err)
	assert.Contains(t, client.prompt, "id 5, 250 rows x 7 columns, column names unknown")

	_, err = src.ExtractIntent(context.Background(), backend.ExtractIntentRequest{Prompt: "predict y", DatasetID: 6})
	require.NoError(t, err)
	assert.Contains(t, client.prompt, "id 6, schema unknown")
}

func TestLLMSource_FeedsExtractor(t *testing.T) {
	client := &fakeLLM{answer: `{"intent": {"task": {"type": "regression", "target_column": "y"}}}`}
	e := New(NewLLMSource(client, llm.TierLite, nil), nil)

	res, err := e.Extract(context.Background(), "predict y", &types.DatasetRef{ID: 2, SourceMode: types.SourceSelect})
	require.NoError(t, err)
	assert.Equal(t, types.TaskRegression, res.Intent.TaskType())
	assert.Equal(t, 2, *res.DatasetInfo.DatasetID)
	assert.Contains(t, client.prompt, "id 2, schema unknown")
}

func TestLLMSource_UnreadableAnswer(t *testing.T) {
	e := New(NewLLMSource(&fakeLLM{answer: "I cannot help with that"}, "", nil), nil)

	_, err := e.Extract(context.Background(), "predict y", &types.DatasetRef{ID: 2})
	var exErr *ExtractionError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, "Language model returned unreadable JSON", exErr.Message)
}

func TestLLMSource_ModelFailure(t *testing.T) {
	e := New(NewLLMSource(&fakeLLM{err: errors.New("quota")}, "", nil), nil)

	_, err := e.Extract(context.Background(), "predict y", &types.DatasetRef{ID: 2})
	var exErr *ExtractionError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, DefaultFailure, exErr.Message)
}

func TestLLMSource_DescriberFailure(t *testing.T) {
	src := NewLLMSource(&fakeLLM{}, "", fakeDescriber{err: errors.New("cache down")})
	_, err := src.ExtractIntent(context.Background(), backend.ExtractIntentRequest{Prompt: "p", DatasetID: 1})
	assert.Error(t, err)
}
