package training

import "fmt"

// DefaultFailure is shown when the backend gives no reason
const DefaultFailure = "Failed to train model"

// TrainingError means the training call failed as a whole. Failed
// experiments inside a successful call are not errors.
type TrainingError struct {
	Message string
	Cause   error
}

func (e *TrainingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TrainingError) Unwrap() error {
	return e.Cause
}
