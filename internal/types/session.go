package types

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the step a build session is on
type Phase string

// Build phases
const (
	PhaseIdle             Phase = "idle"
	PhaseResolvingDataset Phase = "resolving_dataset"
	PhaseExtractingIntent Phase = "extracting_intent"
	PhaseReviewingIntent  Phase = "reviewing_intent"
	PhaseTraining         Phase = "training"
	PhaseCompleted        Phase = "completed"
	PhaseErrored          Phase = "errored"
)

// AllPhases lists every phase in flow order
var AllPhases = []Phase{
	PhaseIdle,
	PhaseResolvingDataset,
	PhaseExtractingIntent,
	PhaseReviewingIntent,
	PhaseTraining,
	PhaseCompleted,
	PhaseErrored,
}

// Resolving is true while the dataset is being uploaded or looked up
func (p Phase) Resolving() bool { return p == PhaseResolvingDataset }

// Extracting is true while the intent is being extracted
func (p Phase) Extracting() bool { return p == PhaseExtractingIntent }

// Training is true while the plan is being compiled and executed
func (p Phase) Training() bool { return p == PhaseTraining }

// Busy is true while an asynchronous operation is in flight
func (p Phase) Busy() bool {
	return p.Resolving() || p.Extracting() || p.Training()
}

// Error kinds recorded on a session
const (
	ErrorKindInput      = "input"
	ErrorKindDataset    = "dataset"
	ErrorKindExtraction = "extraction"
	ErrorKindTraining   = "training"
)

// ErrorInfo is the last error shown to the user
type ErrorInfo struct {
	Step    Phase  `json:"step"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ExtractionValidation carries the backend's advisory diagnostics
type ExtractionValidation struct {
	IsValid  bool     `json:"is_valid"`
	Warnings []string `json:"warnings,omitempty"`
}

// BuildSession is the full lifecycle state of one prompt-to-trained-model attempt
type BuildSession struct {
	ID          string                `json:"id"`
	ProjectID   int                   `json:"project_id"`
	ModelName   string                `json:"model_name"`
	Prompt      string                `json:"prompt"`
	Selection   DatasetSelection      `json:"selection"`
	DatasetRef  *DatasetRef           `json:"dataset_ref,omitempty"`
	DatasetInfo *DatasetInfo          `json:"dataset_info,omitempty"`
	ModelID     *int                  `json:"model_id,omitempty"`
	Intent      *Intent               `json:"intent,omitempty"`
	Validation  *ExtractionValidation `json:"validation,omitempty"`
	Plan        *ExperimentPlan       `json:"plan,omitempty"`
	Outcome     *TrainingOutcome      `json:"outcome,omitempty"`
	Phase       Phase                 `json:"phase"`
	Error       *ErrorInfo            `json:"error,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// NewBuildSession creates a fresh idle session
func NewBuildSession(projectID int, modelName string) *BuildSession {
	now := time.Now().UTC()
	return &BuildSession{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		ModelName: modelName,
		Phase:     PhaseIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy that shares no mutable state with s.
// The selection's upload reader is dropped.
func (s *BuildSession) Clone() *BuildSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Selection.File = nil
	if s.DatasetRef != nil {
		ref := *s.DatasetRef
		out.DatasetRef = &ref
	}
	if s.DatasetInfo != nil {
		info := DatasetInfo{
			Shape:   append([]int(nil), s.DatasetInfo.Shape...),
			Columns: append([]string(nil), s.DatasetInfo.Columns...),
		}
		if s.DatasetInfo.DatasetID != nil {
			id := *s.DatasetInfo.DatasetID
			info.DatasetID = &id
		}
		out.DatasetInfo = &info
	}
	if s.ModelID != nil {
		id := *s.ModelID
		out.ModelID = &id
	}
	out.Intent = s.Intent.Clone()
	if s.Validation != nil {
		v := ExtractionValidation{
			IsValid:  s.Validation.IsValid,
			Warnings: append([]string(nil), s.Validation.Warnings...),
		}
		out.Validation = &v
	}
	if s.Plan != nil {
		plan := *s.Plan
		if s.Plan.Preprocessing.MissingStrategy != nil {
			ms := *s.Plan.Preprocessing.MissingStrategy
			plan.Preprocessing.MissingStrategy = &ms
		}
		plan.Experiments = make([]ExperimentSpec, len(s.Plan.Experiments))
		for i, e := range s.Plan.Experiments {
			plan.Experiments[i] = ExperimentSpec{ExpID: e.ExpID, Model: e.Model, Params: cloneParams(e.Params)}
		}
		out.Plan = &plan
	}
	if s.Outcome != nil {
		outcome := *s.Outcome
		outcome.ModelID = copyPtr(s.Outcome.ModelID)
		outcome.BestScore = copyPtr(s.Outcome.BestScore)
		if s.Outcome.Results != nil {
			outcome.Results = make([]ExperimentResult, len(s.Outcome.Results))
			for i, r := range s.Outcome.Results {
				r.CVMean = copyPtr(r.CVMean)
				r.TestScore = copyPtr(r.TestScore)
				r.TrainingTimeSeconds = copyPtr(r.TrainingTimeSeconds)
				outcome.Results[i] = r
			}
		}
		out.Outcome = &outcome
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return &out
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
