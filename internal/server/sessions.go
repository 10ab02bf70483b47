package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jonathan/model-builder/internal/db"
	"github.com/jonathan/model-builder/internal/metrics"
	"github.com/jonathan/model-builder/internal/pipeline"
	"github.com/jonathan/model-builder/internal/pipeline/steps"
	"github.com/jonathan/model-builder/internal/types"
)

const (
	persistTimeout   = 5 * time.Second
	subscriberBuffer = 32
)

// SessionStore persists sessions and their transition log; *db.DB implements it
type SessionStore interface {
	SaveSession(ctx context.Context, s *types.BuildSession) error
	GetSession(ctx context.Context, id string) (*types.BuildSession, error)
	DeleteSession(ctx context.Context, id string) error
	RecordEvent(ctx context.Context, sessionID string, input *db.EventInput) (*db.SessionEvent, error)
}

// SnapshotCache keeps short-lived session snapshots; *cache.Store implements it
type SnapshotCache interface {
	SaveSession(ctx context.Context, s *types.BuildSession) error
	LoadSession(ctx context.Context, id string) (*types.BuildSession, error)
	DeleteSession(ctx context.Context, id string) error
}

// liveSession is one orchestrator held by the server plus its SSE subscribers
type liveSession struct {
	orch *pipeline.Orchestrator

	mu          sync.Mutex
	subscribers map[chan pipeline.ProgressEvent]struct{}
	persisted   bool // saved to the store; later transitions are recorded
}

func (ls *liveSession) subscribe() (<-chan pipeline.ProgressEvent, func()) {
	ch := make(chan pipeline.ProgressEvent, subscriberBuffer)
	ls.mu.Lock()
	ls.subscribers[ch] = struct{}{}
	ls.mu.Unlock()

	return ch, func() {
		ls.mu.Lock()
		delete(ls.subscribers, ch)
		ls.mu.Unlock()
	}
}

// publish never blocks; a subscriber that falls behind loses events
func (ls *liveSession) publish(ev pipeline.ProgressEvent) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for ch := range ls.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (ls *liveSession) setPersisted(v bool) {
	ls.mu.Lock()
	ls.persisted = v
	ls.mu.Unlock()
}

func (ls *liveSession) isPersisted() bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.persisted
}

// registry maps session ids to live sessions. A reset session stays
// reachable under every id it has had.
type registry struct {
	mu   sync.RWMutex
	byID map[string]*liveSession
}

func newRegistry() *registry {
	return &registry{byID: make(map[string]*liveSession)}
}

func (r *registry) get(id string) *liveSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

func (r *registry) put(id string, ls *liveSession) {
	r.mu.Lock()
	r.byID[id] = ls
	r.mu.Unlock()
	metrics.LiveSessions.Set(float64(r.size()))
}

// remove drops every id that points at ls
func (r *registry) remove(ls *liveSession) []string {
	r.mu.Lock()
	var ids []string
	for id, v := range r.byID {
		if v == ls {
			ids = append(ids, id)
			delete(r.byID, id)
		}
	}
	r.mu.Unlock()
	metrics.LiveSessions.Set(float64(r.size()))
	return ids
}

// size counts distinct sessions, not ids
func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[*liveSession]struct{}, len(r.byID))
	for _, v := range r.byID {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// openSession creates a live session, either fresh or from restored state
func (s *Server) openSession(restored *types.BuildSession, projectID int, modelName string) (*liveSession, error) {
	ls := &liveSession{subscribers: make(map[chan pipeline.ProgressEvent]struct{})}
	if restored != nil {
		projectID = restored.ProjectID
	}
	resolver := s.deps.Resolver(projectID)
	orch, err := pipeline.New(pipeline.Options{
		Resolver:   resolver,
		Extractor:  s.deps.Extractor,
		Executor:   s.deps.Executor,
		ProjectID:  projectID,
		ModelName:  modelName,
		Session:    restored,
		OnProgress: func(ev pipeline.ProgressEvent) { s.onProgress(ls, ev) },
		Logger:     s.log,
	})
	if err != nil {
		return nil, err
	}
	ls.orch = orch
	s.sessions.put(orch.SessionID(), ls)
	s.snapshot(ls)
	return ls, nil
}

// lookup finds a live session, restoring it from the cache or the store
func (s *Server) lookup(ctx context.Context, id string) (*liveSession, error) {
	if ls := s.sessions.get(id); ls != nil {
		return ls, nil
	}

	restored, persisted, err := s.loadSaved(ctx, id)
	if err != nil {
		return nil, err
	}
	if restored == nil {
		return nil, &ErrSessionNotFound{ID: id}
	}

	s.restoreMu.Lock()
	defer s.restoreMu.Unlock()
	if ls := s.sessions.get(id); ls != nil {
		return ls, nil
	}
	ls, err := s.openSession(restored, 0, "")
	if err != nil {
		return nil, err
	}
	ls.setPersisted(persisted)
	s.log.Info("session restored", "session_id", id, "phase", ls.orch.Phase())
	return ls, nil
}

// loadSaved prefers the cached snapshot, which is newer than the stored copy
func (s *Server) loadSaved(ctx context.Context, id string) (*types.BuildSession, bool, error) {
	var persisted bool
	if s.deps.Store != nil {
		stored, err := s.deps.Store.GetSession(ctx, id)
		if err != nil {
			s.log.Warn("failed to load stored session", "session_id", id, "error", err)
		}
		if stored != nil {
			persisted = true
			if s.deps.Cache == nil {
				return stored, true, nil
			}
			if cached := s.cached(ctx, id); cached != nil && !cached.UpdatedAt.Before(stored.UpdatedAt) {
				return cached, true, nil
			}
			return stored, true, nil
		}
	}
	return s.cached(ctx, id), persisted, nil
}

func (s *Server) cached(ctx context.Context, id string) *types.BuildSession {
	if s.deps.Cache == nil {
		return nil
	}
	snap, err := s.deps.Cache.LoadSession(ctx, id)
	if err != nil {
		s.log.Warn("failed to load session snapshot", "session_id", id, "error", err)
		return nil
	}
	return snap
}

// onProgress fans a transition out to subscribers and storage
func (s *Server) onProgress(ls *liveSession, ev pipeline.ProgressEvent) {
	ls.publish(ev)

	if ev.Category == steps.EventReset {
		// the fresh session has a new id and has never been saved
		s.sessions.put(ev.SessionID, ls)
		ls.setPersisted(false)
	}
	s.snapshot(ls)

	if s.deps.Store == nil || !ls.isPersisted() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	snap := ls.orch.Snapshot()
	if err := s.deps.Store.SaveSession(ctx, snap); err != nil {
		s.log.Warn("failed to save session", "session_id", snap.ID, "error", err)
		return
	}
	input := &db.EventInput{Event: ev.Category, Phase: ev.Step, Message: ev.Message, Content: ev.Content}
	if _, err := s.deps.Store.RecordEvent(ctx, snap.ID, input); err != nil {
		s.log.Warn("failed to record session event", "session_id", snap.ID, "event", ev.Category, "error", err)
	}
}

// snapshot writes the session to the cache, if there is one
func (s *Server) snapshot(ls *liveSession) {
	if s.deps.Cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	snap := ls.orch.Snapshot()
	if err := s.deps.Cache.SaveSession(ctx, snap); err != nil {
		s.log.Warn("failed to cache session snapshot", "session_id", snap.ID, "error", err)
	}
}

// persist saves the session to the store and records later transitions
func (s *Server) persist(ctx context.Context, ls *liveSession) (*types.BuildSession, error) {
	if s.deps.Store == nil {
		return nil, &ErrPersistenceDisabled{}
	}
	snap := ls.orch.Snapshot()
	if err := s.deps.Store.SaveSession(ctx, snap); err != nil {
		return nil, err
	}
	ls.setPersisted(true)
	return snap, nil
}

// closeSession forgets a session everywhere
func (s *Server) closeSession(ctx context.Context, ls *liveSession) {
	for _, id := range s.sessions.remove(ls) {
		if s.deps.Cache != nil {
			if err := s.deps.Cache.DeleteSession(ctx, id); err != nil {
				s.log.Warn("failed to delete session snapshot", "session_id", id, "error", err)
			}
		}
		if s.deps.Store != nil {
			if err := s.deps.Store.DeleteSession(ctx, id); err != nil && !isNotFound(err) {
				s.log.Warn("failed to delete stored session", "session_id", id, "error", err)
			}
		}
	}
}

func isNotFound(err error) bool {
	return HTTPStatus(err) == http.StatusNotFound
}
