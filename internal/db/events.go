package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// RecordEvent appends a transition to a saved session's history
func (db *DB) RecordEvent(ctx context.Context, sessionID string, input *EventInput) (*SessionEvent, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}
	var contentJSON []byte
	if input.Content != nil {
		contentJSON, err = json.Marshal(input.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event content: %w", err)
		}
	}

	event := SessionEvent{
		ID:        uuid.New(),
		SessionID: sid,
		Event:     input.Event,
		Phase:     input.Phase,
		Message:   input.Message,
	}
	err = db.pool.QueryRow(ctx,
		`INSERT INTO session_events (id, session_id, event, phase, message, content)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		event.ID, event.SessionID, event.Event, event.Phase, event.Message, contentJSON,
	).Scan(&event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record event %s: %w", input.Event, err)
	}
	event.Content = contentMap(contentJSON)
	return &event, nil
}

// ListEvents returns a session's history, oldest first
func (db *DB) ListEvents(ctx context.Context, sessionID string) ([]SessionEvent, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, session_id, event, phase, message, content, created_at
		 FROM session_events
		 WHERE session_id = $1
		 ORDER BY created_at`,
		sid,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []SessionEvent
	for rows.Next() {
		var e SessionEvent
		var contentJSON []byte
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Event, &e.Phase, &e.Message, &contentJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Content = contentMap(contentJSON)
		events = append(events, e)
	}
	return events, rows.Err()
}

// contentMap decodes object content; anything else is wrapped under "value"
func contentMap(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err == nil {
		return out
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return nil
	}
	return map[string]any{"value": v}
}
