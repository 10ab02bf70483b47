package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/model-builder/internal/schemas"
	"github.com/jonathan/model-builder/internal/types"
	schemadocs "github.com/jonathan/model-builder/schemas"
)

// ErrSessionNotFound is returned by DeleteSession for an unknown id
var ErrSessionNotFound = errors.New("session not found")

// SaveSession inserts or replaces a serialized session
func (db *DB) SaveSession(ctx context.Context, s *types.BuildSession) error {
	id, state, err := encodeSession(s)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO build_sessions (id, project_id, model_name, model_id, phase, prompt, state, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE
		 SET project_id = $2, model_name = $3, model_id = $4, phase = $5, prompt = $6,
		     state = $7, updated_at = $9`,
		id, s.ProjectID, s.ModelName, s.ModelID, string(s.Phase), s.Prompt, state, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.ID, err)
	}
	return nil
}

// GetSession loads a saved session; it returns nil, nil when there is none
func (db *DB) GetSession(ctx context.Context, id string) (*types.BuildSession, error) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", id, err)
	}

	var state []byte
	err = db.pool.QueryRow(ctx,
		`SELECT state FROM build_sessions WHERE id = $1`,
		sessionID,
	).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return decodeSession(state)
}

// ListSessions retrieves recently updated sessions with optional filters
func (db *DB) ListSessions(ctx context.Context, filters SessionFilters) ([]SessionSummary, error) {
	query, args := listSessionsQuery(filters)
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.ModelName, &s.ModelID, &s.Phase, &s.Prompt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession deletes a session and its events (via cascade)
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", id, err)
	}
	result, err := db.pool.Exec(ctx, `DELETE FROM build_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

func listSessionsQuery(filters SessionFilters) (string, []any) {
	if filters.Limit <= 0 {
		filters.Limit = 50
	}

	query := `SELECT id, project_id, model_name, model_id, phase, prompt, created_at, updated_at
		FROM build_sessions WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.ProjectID > 0 {
		query += fmt.Sprintf(" AND project_id = $%d", argNum)
		args = append(args, filters.ProjectID)
		argNum++
	}
	if filters.Phase != "" {
		query += fmt.Sprintf(" AND phase = $%d", argNum)
		args = append(args, filters.Phase)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)
	return query, args
}

func encodeSession(s *types.BuildSession) (uuid.UUID, []byte, error) {
	if s == nil {
		return uuid.Nil, nil, fmt.Errorf("session is nil")
	}
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid session id %q: %w", s.ID, err)
	}
	state, err := json.Marshal(s)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return id, state, nil
}

// decodeSession validates a stored document before decoding it
func decodeSession(state []byte) (*types.BuildSession, error) {
	if err := schemas.ValidateJSONBytes(schemadocs.MustGet(schemadocs.BuildSession), state); err != nil {
		return nil, fmt.Errorf("stored session is invalid: %w", err)
	}
	var s types.BuildSession
	if err := json.Unmarshal(state, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}
