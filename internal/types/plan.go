package types

// ExperimentPlan is the compiled, executable set of training configurations
// derived from an Intent. It is read-only and discarded when the Intent changes.
type ExperimentPlan struct {
	TaskConfig    TaskSpec          `json:"task_config"`
	Preprocessing PreprocessingSpec `json:"preprocessing"`
	Experiments   []ExperimentSpec  `json:"experiments"`
}

// ExperimentSpec is one model/configuration the backend will train
type ExperimentSpec struct {
	ExpID  string         `json:"exp_id"`
	Model  string         `json:"model"`
	Params map[string]any `json:"params,omitempty"`
}
