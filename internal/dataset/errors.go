// Package dataset turns the user's dataset choice into a DatasetRef and keeps
// a per-project list of known datasets.
package dataset

import "fmt"

// ValidationError means the selection is incomplete or malformed.
// It is raised before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid dataset selection: %s: %s", e.Field, e.Message)
}

// UploadError means the backend did not accept the upload
type UploadError struct {
	Message string
	Cause   error
}

func (e *UploadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}
