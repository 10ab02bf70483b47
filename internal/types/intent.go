// Package types provides type definitions for structured data used throughout the model builder.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"github.com/go-playground/validator/v10"
)

// TaskType is the kind of machine-learning problem an Intent describes
type TaskType string

// Supported task types
const (
	TaskRegression     TaskType = "regression"
	TaskClassification TaskType = "classification"
	TaskClustering     TaskType = "clustering"
	TaskTimeseries     TaskType = "timeseries"
)

// Scaling values accepted in preprocessing.scaling
const (
	ScalingStandard = "standard"
	ScalingMinMax   = "minmax"
	ScalingRobust   = "robust"
	ScalingNone     = "none"
)

// Encoding values accepted in preprocessing.encoding
const (
	EncodingOneHot = "onehot"
	EncodingLabel  = "label"
)

// Missing-value strategies
const (
	MissingMean         = "mean"
	MissingMedian       = "median"
	MissingMostFrequent = "most_frequent"
	MissingConstant     = "constant"
	MissingDrop         = "drop"
)

// Intent is the structured description of an ML task derived from a prompt.
// Sub-sections are pointers so that copy-on-write updates can share untouched
// siblings between the old and the new value. A zero field means "not set".
type Intent struct {
	Task          *TaskSpec          `json:"task,omitempty"`
	Preprocessing *PreprocessingSpec `json:"preprocessing,omitempty"`
	SearchSpace   *SearchSpace       `json:"search_space,omitempty"`
}

// TaskSpec describes what is being predicted and how it is scored
type TaskSpec struct {
	Type         TaskType `json:"type,omitempty" validate:"omitempty,oneof=regression classification clustering timeseries"`
	Metric       string   `json:"metric,omitempty"`
	TargetColumn string   `json:"target_column,omitempty"`
	CVFolds      int      `json:"cv_folds,omitempty" validate:"omitempty,gte=2"`
	TestSize     float64  `json:"test_size,omitempty" validate:"omitempty,gt=0,lt=1"`
}

// PreprocessingSpec describes the feature preparation applied before training
type PreprocessingSpec struct {
	MissingStrategy *MissingStrategy `json:"missing_strategy,omitempty"`
	Scaling         string           `json:"scaling,omitempty" validate:"omitempty,oneof=standard minmax robust none"`
	Encoding        string           `json:"encoding,omitempty" validate:"omitempty,oneof=onehot label"`
}

// MissingStrategy holds the imputation strategy per column kind
type MissingStrategy struct {
	Numeric     string `json:"numeric,omitempty" validate:"omitempty,oneof=mean median most_frequent constant drop"`
	Categorical string `json:"categorical,omitempty" validate:"omitempty,oneof=most_frequent constant drop"`
}

// SearchSpace lists the candidate algorithms
type SearchSpace struct {
	Models []ModelSpec `json:"models" validate:"unique=Name,dive"`
}

// ModelSpec is one candidate algorithm with its hyper-parameters
type ModelSpec struct {
	Name   string         `json:"name" validate:"required"`
	Params map[string]any `json:"params"`
}

// Validate checks enum values, numeric ranges and model-name uniqueness.
func (i *Intent) Validate() error {
	validate := validator.New()
	return validate.Struct(i)
}

// ModelNames returns the candidate model names in order
func (i *Intent) ModelNames() []string {
	if i == nil || i.SearchSpace == nil {
		return nil
	}
	names := make([]string, 0, len(i.SearchSpace.Models))
	for _, m := range i.SearchSpace.Models {
		names = append(names, m.Name)
	}
	return names
}

// HasModel reports whether the search space contains a model with the given name
func (i *Intent) HasModel(name string) bool {
	for _, n := range i.ModelNames() {
		if n == name {
			return true
		}
	}
	return false
}

// TaskType returns the task type or "" when unset
func (i *Intent) TaskType() TaskType {
	if i == nil || i.Task == nil {
		return ""
	}
	return i.Task.Type
}

// TargetColumn returns the target column or "" when unset
func (i *Intent) TargetColumn() string {
	if i == nil || i.Task == nil {
		return ""
	}
	return i.Task.TargetColumn
}

// Clone returns a deep copy of the intent.
func (i *Intent) Clone() *Intent {
	if i == nil {
		return nil
	}
	out := &Intent{}
	if i.Task != nil {
		task := *i.Task
		out.Task = &task
	}
	if i.Preprocessing != nil {
		pre := *i.Preprocessing
		if i.Preprocessing.MissingStrategy != nil {
			ms := *i.Preprocessing.MissingStrategy
			pre.MissingStrategy = &ms
		}
		out.Preprocessing = &pre
	}
	if i.SearchSpace != nil {
		out.SearchSpace = &SearchSpace{Models: CloneModels(i.SearchSpace.Models)}
	}
	return out
}

// CloneModels deep-copies a model list including nested params
func CloneModels(models []ModelSpec) []ModelSpec {
	if models == nil {
		return nil
	}
	out := make([]ModelSpec, len(models))
	for idx, m := range models {
		out[idx] = ModelSpec{Name: m.Name, Params: cloneParams(m.Params)}
	}
	return out
}

func cloneParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneParams(val)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = cloneValue(item)
		}
		return items
	default:
		return val
	}
}
