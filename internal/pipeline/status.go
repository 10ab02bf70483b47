package pipeline

import (
	"github.com/jonathan/model-builder/internal/pipeline/steps"
	"github.com/jonathan/model-builder/internal/types"
)

// Status holds the flags a presentation layer needs to render a session.
// Every flag is derived from the phase and the presence of an intent.
type Status struct {
	Phase      types.Phase `json:"phase"`
	Busy       bool        `json:"busy"`
	Resolving  bool        `json:"resolving"`
	Extracting bool        `json:"extracting"`
	Training   bool        `json:"training"`
	CanSubmit  bool        `json:"can_submit"`
	CanEdit    bool        `json:"can_edit"`
	CanTrain   bool        `json:"can_train"`
	CanCancel  bool        `json:"can_cancel"`
	CanReset   bool        `json:"can_reset"`
}

// StatusOf derives the status flags of s
func StatusOf(s *types.BuildSession) Status {
	if s == nil {
		return Status{}
	}
	p := s.Phase
	hasIntent := s.Intent != nil
	return Status{
		Phase:      p,
		Busy:       p.Busy(),
		Resolving:  p.Resolving(),
		Extracting: p.Extracting(),
		Training:   p.Training(),
		CanSubmit:  steps.Allowed(steps.EventSubmit, p),
		CanEdit:    hasIntent && steps.Allowed(steps.EventEdit, p),
		CanTrain:   hasIntent && steps.Allowed(steps.EventTrain, p),
		CanCancel:  steps.Allowed(steps.EventCancel, p),
		CanReset:   steps.Allowed(steps.EventReset, p),
	}
}
