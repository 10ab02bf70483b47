package types

// ExperimentStatus is the terminal status of one experiment
type ExperimentStatus string

// Experiment statuses
const (
	ExperimentCompleted ExperimentStatus = "completed"
	ExperimentFailed    ExperimentStatus = "failed"
)

// ExperimentResult is the outcome of running one configuration from the plan
type ExperimentResult struct {
	ExpID               string           `json:"exp_id"`
	Model               string           `json:"model"`
	Status              ExperimentStatus `json:"status"`
	CVMean              *float64         `json:"cv_mean,omitempty"`
	TestScore           *float64         `json:"test_score,omitempty"`
	TrainingTimeSeconds *float64         `json:"training_time_seconds,omitempty"`
	Error               string           `json:"error,omitempty"`
}

// Score returns the test score, or 0 when the experiment has none
func (r ExperimentResult) Score() float64 {
	if r.TestScore == nil {
		return 0
	}
	return *r.TestScore
}

// TrainingOutcome aggregates every experiment of one training run
type TrainingOutcome struct {
	TrainingRunID    int                `json:"training_run_id,omitempty"`
	ModelID          *int               `json:"model_id,omitempty"`
	BestExperimentID string             `json:"best_experiment_id"`
	BestScore        *float64           `json:"best_score,omitempty"`
	TotalExperiments int                `json:"total_experiments"`
	Results          []ExperimentResult `json:"results"`
}

// Failed returns the experiments that did not complete
func (o *TrainingOutcome) Failed() []ExperimentResult {
	if o == nil {
		return nil
	}
	var failed []ExperimentResult
	for _, r := range o.Results {
		if r.Status != ExperimentCompleted {
			failed = append(failed, r)
		}
	}
	return failed
}
