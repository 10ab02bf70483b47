package pipeline

import (
	"errors"
	"fmt"

	"github.com/jonathan/model-builder/internal/dataset"
	"github.com/jonathan/model-builder/internal/extraction"
	"github.com/jonathan/model-builder/internal/pipeline/steps"
	"github.com/jonathan/model-builder/internal/training"
	"github.com/jonathan/model-builder/internal/types"
)

// BusyError is returned when a command arrives while an async call is in
// flight. The command is rejected, never queued.
type BusyError struct {
	Command string
	Phase   types.Phase
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("session is busy (%s); %s rejected", e.Phase, e.Command)
}

// errorInfo turns a step failure into the message shown to the user
func errorInfo(step types.Phase, err error) *types.ErrorInfo {
	info := &types.ErrorInfo{Step: step, Kind: kindForStep(step), Message: err.Error()}

	var inputErr *types.InputError
	var validationErr *dataset.ValidationError
	var uploadErr *dataset.UploadError
	var extractionErr *extraction.ExtractionError
	var trainingErr *training.TrainingError
	switch {
	case errors.As(err, &inputErr):
		info.Kind = types.ErrorKindInput
		info.Message = inputErr.Message
	case errors.As(err, &validationErr):
		info.Kind = types.ErrorKindInput
		info.Message = validationErr.Message
	case errors.As(err, &uploadErr):
		info.Kind = types.ErrorKindDataset
		info.Message = uploadErr.Message
	case errors.As(err, &extractionErr):
		info.Kind = types.ErrorKindExtraction
		info.Message = extractionErr.Message
	case errors.As(err, &trainingErr):
		info.Kind = types.ErrorKindTraining
		info.Message = trainingErr.Message
	}
	return info
}

func kindForStep(step types.Phase) string {
	switch step {
	case types.PhaseResolvingDataset:
		return types.ErrorKindDataset
	case types.PhaseExtractingIntent:
		return types.ErrorKindExtraction
	case types.PhaseTraining:
		return types.ErrorKindTraining
	default:
		return types.ErrorKindInput
	}
}

// rejectReason labels a rejected command for metrics
func rejectReason(err error) string {
	var busy *BusyError
	var transition *steps.TransitionError
	switch {
	case errors.As(err, &busy):
		return "busy"
	case errors.As(err, &transition):
		return "phase"
	default:
		return "input"
	}
}
