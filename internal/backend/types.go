package backend

import (
	"encoding/json"
	"io"

	"github.com/jonathan/model-builder/internal/types"
)

// UploadRequest is the multipart payload of POST /datasets/
type UploadRequest struct {
	FileName    string
	File        io.Reader
	Name        string
	Description string
	ProjectID   int
}

// ExtractIntentRequest is the body of POST /extract-intent/
type ExtractIntentRequest struct {
	Prompt    string `json:"prompt"`
	DatasetID int    `json:"dataset_id"`
}

// ExtractIntentResponse is the envelope returned by POST /extract-intent/.
// Intent and ExperimentPlan are left raw so the caller can validate them.
type ExtractIntentResponse struct {
	Success        bool                        `json:"success"`
	Intent         json.RawMessage             `json:"intent,omitempty"`
	ModelID        *int                        `json:"model_id,omitempty"`
	Validation     *types.ExtractionValidation `json:"validation,omitempty"`
	ExperimentPlan json.RawMessage             `json:"experiment_plan,omitempty"`
	DatasetInfo    *types.DatasetInfo          `json:"dataset_info,omitempty"`
	RawPrompt      string                      `json:"raw_prompt,omitempty"`
	Error          string                      `json:"error,omitempty"`
}

// TrainRequest is the body of POST /train/
type TrainRequest struct {
	Intent    *types.Intent `json:"intent"`
	ModelID   *int          `json:"model_id,omitempty"`
	DatasetID int           `json:"dataset_id"`
	ProjectID int           `json:"project_id"`
	ModelName string        `json:"model_name"`
}

// TrainResponse is the envelope returned by POST /train/
type TrainResponse struct {
	Success          bool                     `json:"success"`
	TrainingRunID    int                      `json:"training_run_id"`
	ModelID          *int                     `json:"model_id,omitempty"`
	TotalExperiments int                      `json:"total_experiments"`
	BestExperimentID string                   `json:"best_experiment_id"`
	BestScore        *float64                 `json:"best_score,omitempty"`
	ExperimentPlan   *types.ExperimentPlan    `json:"experiment_plan,omitempty"`
	Results          []types.ExperimentResult `json:"results"`
	Error            string                   `json:"error,omitempty"`
}

// Outcome converts the response into a TrainingOutcome
func (r *TrainResponse) Outcome() *types.TrainingOutcome {
	return &types.TrainingOutcome{
		TrainingRunID:    r.TrainingRunID,
		ModelID:          r.ModelID,
		BestExperimentID: r.BestExperimentID,
		BestScore:        r.BestScore,
		TotalExperiments: r.TotalExperiments,
		Results:          r.Results,
	}
}

// envelope is implemented by responses that report success in the body
type envelope interface {
	succeeded() bool
	failureMessage() string
}

func (r *ExtractIntentResponse) succeeded() bool        { return r.Success }
func (r *ExtractIntentResponse) failureMessage() string { return r.Error }
func (r *TrainResponse) succeeded() bool                { return r.Success }
func (r *TrainResponse) failureMessage() string         { return r.Error }
