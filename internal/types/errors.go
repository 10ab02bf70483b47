package types

import "fmt"

// InputError is a client-side precondition failure: a blank prompt, a
// missing dataset, a missing intent or a bad edit. It is raised before
// anything is sent over the network.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
