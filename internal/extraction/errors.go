package extraction

import "fmt"

// DefaultFailure is shown when the backend gives no reason
const DefaultFailure = "Failed to extract intent"

// ExtractionError means the backend rejected or failed the extraction, or
// answered with a document that does not describe a valid intent.
type ExtractionError struct {
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}
