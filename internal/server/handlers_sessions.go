package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/model-builder/internal/intentstore"
	"github.com/jonathan/model-builder/internal/pipeline"
	"github.com/jonathan/model-builder/internal/pipeline/steps"
	"github.com/jonathan/model-builder/internal/ranking"
	"github.com/jonathan/model-builder/internal/types"
)

const (
	maxUploadBytes = 256 << 20
	maxJSONBytes   = 1 << 20
	keepAlive      = 15 * time.Second
)

// SessionResponse is the rendered state of one session
type SessionResponse struct {
	Session         *types.BuildSession      `json:"session"`
	Status          pipeline.Status          `json:"status"`
	Commands        []string                 `json:"commands"`
	EffectiveIntent *types.Intent            `json:"effective_intent,omitempty"`
	ModelCatalog    []string                 `json:"model_catalog,omitempty"`
	Ranked          []types.ExperimentResult `json:"ranked,omitempty"`
	Summary         string                   `json:"summary,omitempty"`
	Error           string                   `json:"error,omitempty"`
}

// CreateSessionRequest represents the request body for POST /sessions
type CreateSessionRequest struct {
	ProjectID int    `json:"project_id,omitempty"`
	ModelName string `json:"model_name,omitempty"`
}

// ResumeSessionRequest represents the request body for POST /sessions/resume
type ResumeSessionRequest struct {
	ModelID int `json:"model_id"`
}

// SubmitRequest represents the JSON body for POST /sessions/{id}/submit
type SubmitRequest struct {
	Prompt    string                 `json:"prompt"`
	Selection types.DatasetSelection `json:"selection"`
}

// EditIntentRequest represents the request body for PATCH /sessions/{id}/intent
type EditIntentRequest struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// render builds the response for a session snapshot
func render(snap *types.BuildSession) SessionResponse {
	status := pipeline.StatusOf(snap)
	resp := SessionResponse{
		Session:  snap,
		Status:   status,
		Commands: commands(status),
	}
	if snap.Intent != nil {
		effective := intentstore.WithDefaults(snap.Intent)
		resp.EffectiveIntent = &effective
		resp.ModelCatalog = intentstore.ModelCatalog(effective.TaskType())
	}
	if snap.Outcome != nil {
		resp.Ranked = ranking.RankResults(snap.Outcome.Results)
		resp.Summary = ranking.Summary(snap.Outcome)
	}
	return resp
}

// commands lists what the client may send next
func commands(st pipeline.Status) []string {
	var out []string
	for _, c := range steps.AvailableCommands(st.Phase) {
		if (c == steps.EventEdit && !st.CanEdit) || (c == steps.EventTrain && !st.CanTrain) {
			continue
		}
		out = append(out, c)
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// commandResponse writes the session after a command. A failed command still
// returns the session so the client can show the recorded error.
func (s *Server) commandResponse(w http.ResponseWriter, ls *liveSession, err error) {
	resp := render(ls.orch.Snapshot())
	if err != nil {
		resp.Error = errorMessage(err)
		s.jsonResponse(w, HTTPStatus(err), resp)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*liveSession, bool) {
	ls, err := s.lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		s.failResponse(w, err)
		return nil, false
	}
	return ls, true
}

// decodeJSON reads a JSON body. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

// handleCreateSession handles POST /sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.failResponse(w, err)
		return
	}
	if req.ProjectID < 0 {
		s.failResponse(w, &ErrValidation{Field: "project_id", Message: "must not be negative"})
		return
	}
	if req.ProjectID == 0 {
		req.ProjectID = s.cfg.ProjectID
	}
	if strings.TrimSpace(req.ModelName) == "" {
		req.ModelName = s.cfg.ModelName
	}

	ls, err := s.openSession(nil, req.ProjectID, strings.TrimSpace(req.ModelName))
	if err != nil {
		s.failResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, render(ls.orch.Snapshot()))
}

// handleResumeSession handles POST /sessions/resume, opening a saved draft model
func (s *Server) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	var req ResumeSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.failResponse(w, err)
		return
	}

	restored, err := pipeline.ResumeSession(r.Context(), s.deps.Models, req.ModelID)
	if err != nil {
		s.failResponse(w, err)
		return
	}
	if restored.ProjectID == 0 {
		restored.ProjectID = s.cfg.ProjectID
	}

	ls, err := s.openSession(restored, 0, "")
	if err != nil {
		s.failResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, render(ls.orch.Snapshot()))
}

// handleGetSession handles GET /sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, render(ls.orch.Snapshot()))
}

// handleDeleteSession handles DELETE /sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	if ls.orch.Phase().Busy() {
		s.failResponse(w, &pipeline.BusyError{Command: "delete", Phase: ls.orch.Phase()})
		return
	}
	s.closeSession(r.Context(), ls)
	w.WriteHeader(http.StatusNoContent)
}

// handleSaveSession handles POST /sessions/{id}/save
func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	snap, err := s.persist(r.Context(), ls)
	if err != nil {
		s.failResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"id":         snap.ID,
		"phase":      snap.Phase,
		"saved":      true,
		"updated_at": snap.UpdatedAt,
	})
}

// handleSubmit handles POST /sessions/{id}/submit. The body is either JSON or
// a multipart form carrying the dataset file.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}

	prompt, sel, cleanup, err := parseSubmit(w, r)
	if err != nil {
		s.failResponse(w, err)
		return
	}
	defer cleanup()

	_, err = ls.orch.Submit(r.Context(), prompt, sel)
	s.commandResponse(w, ls, err)
}

// parseSubmit reads the prompt and dataset selection from either body form
func parseSubmit(w http.ResponseWriter, r *http.Request) (string, types.DatasetSelection, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var req SubmitRequest
		if err := decodeJSON(r, &req); err != nil {
			return "", types.DatasetSelection{}, noop, err
		}
		req.Selection.File = nil
		return req.Prompt, req.Selection, noop, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", types.DatasetSelection{}, noop, &ErrValidation{Field: "body", Message: "invalid multipart form: " + err.Error()}
	}
	cleanup := func() {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll() //nolint:errcheck
		}
	}

	sel := types.DatasetSelection{
		Mode:        types.SourceMode(r.FormValue("mode")),
		DatasetID:   r.FormValue("dataset_id"),
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		sel.File = file
		sel.FileName = header.Filename
		if sel.Mode == "" {
			sel.Mode = types.SourceUpload
		}
		inner := cleanup
		cleanup = func() {
			file.Close() //nolint:errcheck
			inner()
		}
	case errors.Is(err, http.ErrMissingFile):
	default:
		cleanup()
		return "", types.DatasetSelection{}, noop, &ErrValidation{Field: "file", Message: err.Error()}
	}
	return r.FormValue("prompt"), sel, cleanup, nil
}

// handleEditIntent handles PATCH /sessions/{id}/intent
func (s *Server) handleEditIntent(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	var req EditIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.failResponse(w, err)
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		s.failResponse(w, &ErrValidation{Field: "path", Message: "is required"})
		return
	}
	_, err := ls.orch.Edit(req.Path, req.Value)
	s.commandResponse(w, ls, err)
}

// handleToggleModel handles POST /sessions/{id}/intent/models/{name}/toggle
func (s *Server) handleToggleModel(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	_, err := ls.orch.ToggleModel(r.PathValue("name"))
	s.commandResponse(w, ls, err)
}

// handleCancel handles POST /sessions/{id}/cancel
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	s.commandResponse(w, ls, ls.orch.Cancel())
}

// handleTrain handles POST /sessions/{id}/train
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	_, err := ls.orch.ConfirmTrain(r.Context())
	s.commandResponse(w, ls, err)
}

// handleReset handles POST /sessions/{id}/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	s.commandResponse(w, ls, ls.orch.Reset())
}

// handleSessionEvents handles GET /sessions/{id}/events, streaming transitions
// until the session completes or the client goes away.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.session(w, r)
	if !ok {
		return
	}
	events, unsubscribe := ls.subscribe()
	defer unsubscribe()

	stream, err := openEventStream(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := stream.snapshot(render(ls.orch.Snapshot())); err != nil {
		return
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := stream.keepAlive(); err != nil {
				return
			}
		case ev := <-events:
			if err := stream.progress(ev); err != nil {
				return
			}
			switch types.Phase(ev.Step) {
			case types.PhaseCompleted:
				_ = stream.completed(ev.SessionID)
				return
			case types.PhaseErrored:
				if err := stream.failed(ev, ls.orch.Snapshot().Error); err != nil {
					return
				}
			}
		}
	}
}
