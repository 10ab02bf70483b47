package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/model-builder/internal/pipeline"
	"github.com/jonathan/model-builder/internal/types"
)

func score(f float64) *float64 { return &f }
func intPtr(i int) *int         { return &i }

func TestPrintIntent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintIntent(&types.Intent{
		Task: &types.TaskSpec{Type: types.TaskClassification, TargetColumn: "churn", Metric: "f1"},
		SearchSpace: &types.SearchSpace{Models: []types.ModelSpec{
			{Name: "random_forest"},
			{Name: "xgboost"},
		}},
	})
	output := buf.String()

	assert.Contains(t, output, "EXTRACTED INTENT")
	assert.Contains(t, output, "classification")
	assert.Contains(t, output, "churn")
	assert.Contains(t, output, "Metric:   f1 ")
	assert.NotContains(t, output, "f1 *", "stored values are not marked")
	assert.Contains(t, output, "standard *", "defaults are marked")
	assert.Contains(t, output, "random_forest")
	assert.Contains(t, output, "Models (2)")
}

func TestPrintIntent_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintIntent(nil)
	assert.Empty(t, buf.String())
}

func TestPrintIntent_NoModels(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintIntent(&types.Intent{})
	assert.Contains(t, buf.String(), "(none)")
}

func TestPrintValidation(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintValidation(&types.ExtractionValidation{IsValid: true})
	assert.Empty(t, buf.String())

	p.PrintValidation(&types.ExtractionValidation{IsValid: false, Warnings: []string{"target column not found"}})
	output := buf.String()
	assert.Contains(t, output, "VALIDATION WARNINGS")
	assert.Contains(t, output, "invalid")
	assert.Contains(t, output, "target column not found")
}

func TestPrintRanking(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRanking(&types.TrainingOutcome{
		BestExperimentID: "c",
		TotalExperiments: 3,
		Results: []types.ExperimentResult{
			{ExpID: "a", Model: "ridge", Status: types.ExperimentCompleted, TestScore: score(0.7)},
			{ExpID: "b", Model: "svr", Status: types.ExperimentFailed, Error: "did not converge"},
			{ExpID: "c", Model: "xgboost", Status: types.ExperimentCompleted, TestScore: score(0.9), CVMean: score(0.88)},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "EXPERIMENT RANKING")
	assert.Less(t, strings.Index(output, "#1  xgboost"), strings.Index(output, "#2  ridge"))
	assert.Contains(t, output, "0.9000")
	assert.Contains(t, output, "✗ svr (b): did not converge")
}

func TestPrintDatasets(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintDatasets(4, []types.Dataset{
		{ID: 9, Name: "orders"},
		{ID: 2, Name: "customers", Rows: intPtr(100), Columns: intPtr(5)},
	})
	output := buf.String()

	assert.Contains(t, output, "project 4")
	assert.Less(t, strings.Index(output, "customers"), strings.Index(output, "orders"))
	assert.Contains(t, output, "(100×5)")
}

func TestPrintDatasets_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintDatasets(1, nil)
	assert.Contains(t, buf.String(), "No datasets")
}

func TestPrintProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintProgress(pipeline.ProgressEvent{Step: "resolving_dataset", Message: "Resolving dataset"})
	p.PrintProgress(pipeline.ProgressEvent{Step: "errored", Message: "Failed to extract intent"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"→ [resolving_dataset] Resolving dataset",
		"✗ [errored] Failed to extract intent",
	}, lines)
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintError(&types.ErrorInfo{Step: types.PhaseTraining, Kind: types.ErrorKindTraining, Message: "Training failed"})
	assert.Contains(t, buf.String(), "training during training")
	assert.Contains(t, buf.String(), "Training failed")
}

func TestPrintBox_LongLines(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintError(&types.ErrorInfo{Message: strings.Repeat("x", 200)})
	assert.Contains(t, buf.String(), "...")
}
