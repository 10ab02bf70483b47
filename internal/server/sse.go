package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonathan/model-builder/internal/pipeline"
	"github.com/jonathan/model-builder/internal/types"
)

// SSE event names
const (
	eventSnapshot = "snapshot"
	eventProgress = "progress"
	eventComplete = "complete"
	eventError    = "error"
)

// reconnect delay suggested to EventSource clients
const sseRetry = 3 * time.Second

// eventStream writes server-sent events for one subscriber. Events are
// numbered from 1 so a client can tell whether it missed any.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

// openEventStream sends the stream headers and the retry hint
func openEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprintf(w, "retry: %d\n\n", sseRetry.Milliseconds()); err != nil {
		return nil, err
	}
	flusher.Flush()
	return &eventStream{w: w, flusher: flusher}, nil
}

func (s *eventStream) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *eventStream) snapshot(resp SessionResponse) error {
	return s.send(eventSnapshot, resp)
}

func (s *eventStream) progress(ev pipeline.ProgressEvent) error {
	return s.send(eventProgress, ev)
}

// failed reports the error recorded on the session, or the event message
// when the session has none
func (s *eventStream) failed(ev pipeline.ProgressEvent, info *types.ErrorInfo) error {
	if info == nil {
		info = &types.ErrorInfo{Message: ev.Message}
	}
	return s.send(eventError, info)
}

func (s *eventStream) completed(sessionID string) error {
	return s.send(eventComplete, map[string]string{
		"session_id": sessionID,
		"phase":      string(types.PhaseCompleted),
	})
}

// keepAlive writes a comment line, which clients ignore
func (s *eventStream) keepAlive() error {
	if _, err := fmt.Fprint(s.w, ": keep-alive\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
