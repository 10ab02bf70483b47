package types

import "encoding/json"

// ModelRecord is the backend's model record. A draft has an intent and a
// dataset but has not been trained yet.
type ModelRecord struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Project   *int            `json:"project,omitempty"`
	Dataset   *int            `json:"dataset,omitempty"`
	Intent    json.RawMessage `json:"intent,omitempty"`
	Status    string          `json:"status,omitempty"`
	CreatedAt string          `json:"created_at,omitempty"`
}

// HasIntent reports whether the record carries a non-null intent document
func (m *ModelRecord) HasIntent() bool {
	if m == nil || len(m.Intent) == 0 {
		return false
	}
	return string(m.Intent) != "null"
}
