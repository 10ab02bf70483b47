package db

import (
	"time"

	"github.com/google/uuid"
)

// SessionSummary is a lightweight view of a saved session for listing
type SessionSummary struct {
	ID        uuid.UUID `json:"id"`
	ProjectID int       `json:"project_id"`
	ModelName string    `json:"model_name"`
	ModelID   *int      `json:"model_id,omitempty"`
	Phase     string    `json:"phase"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionFilters holds optional filters for listing sessions
type SessionFilters struct {
	ProjectID int
	Phase     string
	Limit     int
}

// SessionEvent is one recorded phase transition
type SessionEvent struct {
	ID        uuid.UUID      `json:"id"`
	SessionID uuid.UUID      `json:"session_id"`
	Event     string         `json:"event"`
	Phase     string         `json:"phase"`
	Message   string         `json:"message,omitempty"`
	Content   map[string]any `json:"content,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// EventInput represents input for recording a session event
type EventInput struct {
	Event   string
	Phase   string
	Message string
	Content any
}
