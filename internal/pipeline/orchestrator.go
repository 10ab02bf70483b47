// Package pipeline drives one build session from prompt to trained model:
// dataset resolution, intent extraction, review and training.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/jonathan/model-builder/internal/dataset"
	"github.com/jonathan/model-builder/internal/extraction"
	"github.com/jonathan/model-builder/internal/intentstore"
	"github.com/jonathan/model-builder/internal/logger"
	"github.com/jonathan/model-builder/internal/metrics"
	"github.com/jonathan/model-builder/internal/pipeline/steps"
	"github.com/jonathan/model-builder/internal/ranking"
	"github.com/jonathan/model-builder/internal/training"
	"github.com/jonathan/model-builder/internal/types"
)

// ProgressEvent represents a phase transition of a build session
type ProgressEvent struct {
	Step      string `json:"step"`     // phase entered
	Category  string `json:"category"` // event that caused it
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Content   any    `json:"content,omitempty"`
}

// ProgressCallback is called after each transition, outside the session lock
type ProgressCallback func(event ProgressEvent)

// DatasetResolver turns a dataset selection into a DatasetRef
type DatasetResolver interface {
	Resolve(ctx context.Context, sel types.DatasetSelection) (types.DatasetRef, error)
}

// IntentExtractor turns a prompt into an Intent
type IntentExtractor interface {
	Extract(ctx context.Context, prompt string, ref *types.DatasetRef) (*extraction.Result, error)
}

// TrainingExecutor runs an Intent on the backend
type TrainingExecutor interface {
	StartTraining(ctx context.Context, req training.Request) (*training.Result, error)
}

// Options configures an Orchestrator
type Options struct {
	Resolver  DatasetResolver
	Extractor IntentExtractor
	Executor  TrainingExecutor

	ProjectID int
	ModelName string

	// Session restores a saved or resumed session instead of starting fresh
	Session *types.BuildSession

	OnProgress ProgressCallback
	Logger     *logger.Logger
}

// Orchestrator owns one BuildSession. Commands are checked and the phase is
// advanced under mu; mu is released while the resolver, extractor or executor
// is running, and the busy phase keeps every other command out.
type Orchestrator struct {
	mu      sync.Mutex
	machine *fsm.FSM
	session *types.BuildSession
	store   *intentstore.Store
	pending []ProgressEvent

	resolver   DatasetResolver
	extractor  IntentExtractor
	executor   TrainingExecutor
	onProgress ProgressCallback
	log        *logger.Logger
}

// New creates an orchestrator
func New(opts Options) (*Orchestrator, error) {
	if opts.Resolver == nil || opts.Extractor == nil || opts.Executor == nil {
		return nil, fmt.Errorf("resolver, extractor and executor are required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	session := opts.Session.Clone()
	if session == nil {
		session = types.NewBuildSession(opts.ProjectID, opts.ModelName)
	}
	if session.Phase == "" {
		session.Phase = types.PhaseIdle
	}
	if session.Phase.Busy() {
		// the call that was in flight is gone
		session.Error = &types.ErrorInfo{
			Step:    session.Phase,
			Kind:    kindForStep(session.Phase),
			Message: "Interrupted before completion",
		}
		session.Phase = types.PhaseErrored
	}

	o := &Orchestrator{
		session:    session,
		store:      intentstore.NewStore(session.Intent),
		resolver:   opts.Resolver,
		extractor:  opts.Extractor,
		executor:   opts.Executor,
		onProgress: opts.OnProgress,
		log:        log,
	}
	o.machine = steps.NewMachine(session.Phase, fsm.Callbacks{
		"enter_state": func(e *fsm.Event) {
			o.session.Phase = types.Phase(e.Dst)
			metrics.PhaseTransitionCount.WithLabelValues(e.Src, e.Dst).Inc()
		},
	})
	return o, nil
}

// Submit validates the prompt and dataset selection, resolves the dataset and
// extracts an intent. A blank prompt or an incomplete selection fails with an
// input error and leaves the session untouched. An upload selection without
// a file reuses the dataset already uploaded for this session.
func (o *Orchestrator) Submit(ctx context.Context, prompt string, sel types.DatasetSelection) (*extraction.Result, error) {
	o.mu.Lock()
	if err := o.check(steps.EventSubmit); err != nil {
		o.unlock()
		return nil, o.reject(steps.EventSubmit, err)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		o.unlock()
		return nil, o.reject(steps.EventSubmit, &types.InputError{Field: "prompt", Message: "Please describe the model you want to build"})
	}
	reuse := o.reusableUpload(sel)
	if reuse == nil {
		if err := dataset.Validate(sel); err != nil {
			o.unlock()
			return nil, o.reject(steps.EventSubmit, err)
		}
	}

	s := o.session
	if s.DatasetRef != nil && s.DatasetRef.SourceMode != sel.Mode {
		s.DatasetRef = nil
	}
	stored := sel
	stored.File = nil
	s.Prompt = prompt
	s.Selection = stored
	s.Error = nil
	s.Intent = nil
	s.Validation = nil
	s.DatasetInfo = nil
	s.Plan = nil
	s.Outcome = nil
	o.store.Replace(nil)
	if err := o.fire(steps.EventSubmit, "Resolving dataset", nil); err != nil {
		o.unlock()
		return nil, err
	}
	o.unlock()

	ref, err := o.resolve(ctx, sel, reuse)
	if err != nil {
		return nil, o.failStep(types.PhaseResolvingDataset, err)
	}

	o.mu.Lock()
	o.session.DatasetRef = &ref
	err = o.fire(steps.EventResolved, fmt.Sprintf("Using dataset %d", ref.ID), ref)
	o.unlock()
	if err != nil {
		return nil, err
	}

	result, err := o.extractor.Extract(ctx, prompt, &ref)
	if err != nil {
		return nil, o.failStep(types.PhaseExtractingIntent, err)
	}

	o.mu.Lock()
	defer o.unlock()
	s = o.session
	o.store.Replace(result.Intent)
	s.Intent = result.Intent
	if result.ModelID != nil {
		id := *result.ModelID
		s.ModelID = &id
	}
	validation := result.Validation
	s.Validation = &validation
	s.DatasetInfo = result.DatasetInfo
	s.Plan = result.PlanPreview
	s.Outcome = nil
	msg := fmt.Sprintf("Extracted %s intent with %d candidate models", orUnknown(string(result.Intent.TaskType())), len(result.Intent.ModelNames()))
	if err := o.fire(steps.EventExtracted, msg, result.Intent); err != nil {
		return nil, err
	}
	return result, nil
}

// Edit sets one field of the intent under review. Any compiled plan is
// discarded. Editing from Errored returns the session to review.
func (o *Orchestrator) Edit(path string, value any) (*types.Intent, error) {
	o.mu.Lock()
	defer o.unlock()
	if err := o.checkIntent(steps.EventEdit); err != nil {
		return nil, o.reject(steps.EventEdit, err)
	}
	next, err := o.store.SetField(path, value)
	if err != nil {
		return nil, o.reject(steps.EventEdit, err)
	}
	if err := o.applyEdit(next, fmt.Sprintf("Set %s", path)); err != nil {
		return nil, err
	}
	return next, nil
}

// ToggleModel adds the model to the search space or removes it
func (o *Orchestrator) ToggleModel(name string) (*types.Intent, error) {
	o.mu.Lock()
	defer o.unlock()
	if err := o.checkIntent(steps.EventEdit); err != nil {
		return nil, o.reject(steps.EventEdit, err)
	}
	next, err := o.store.ToggleModel(name)
	if err != nil {
		return nil, o.reject(steps.EventEdit, err)
	}
	verb := "Removed"
	if next.HasModel(name) {
		verb = "Added"
	}
	if err := o.applyEdit(next, fmt.Sprintf("%s model %s", verb, name)); err != nil {
		return nil, err
	}
	return next, nil
}

// Cancel discards the intent and returns to Idle. The resolved dataset is
// kept so a new submit does not upload again.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.unlock()
	if err := o.check(steps.EventCancel); err != nil {
		return o.reject(steps.EventCancel, err)
	}
	s := o.session
	s.Intent = nil
	s.Validation = nil
	s.Plan = nil
	s.Outcome = nil
	s.Error = nil
	o.store.Replace(nil)
	return o.fire(steps.EventCancel, "Intent discarded", nil)
}

// ConfirmTrain sends the reviewed intent to the backend. A failure leaves the
// intent as it was, so calling ConfirmTrain again retries with the same intent.
func (o *Orchestrator) ConfirmTrain(ctx context.Context) (*training.Result, error) {
	o.mu.Lock()
	if err := o.checkIntent(steps.EventTrain); err != nil {
		o.unlock()
		return nil, o.reject(steps.EventTrain, err)
	}
	s := o.session
	s.Error = nil
	req := training.Request{
		Intent:      o.store.Current(),
		Selection:   s.Selection,
		DatasetRef:  s.DatasetRef,
		DatasetInfo: s.DatasetInfo,
		ModelID:     s.ModelID,
		ProjectID:   s.ProjectID,
		ModelName:   s.ModelName,
	}
	if err := o.fire(steps.EventTrain, "Training started", nil); err != nil {
		o.unlock()
		return nil, err
	}
	o.unlock()

	result, err := o.executor.StartTraining(ctx, req)
	if err != nil {
		return nil, o.failStep(types.PhaseTraining, err)
	}

	o.mu.Lock()
	defer o.unlock()
	s = o.session
	s.Outcome = result.Outcome
	if result.Plan != nil {
		s.Plan = result.Plan
	}
	if result.Outcome != nil && result.Outcome.ModelID != nil {
		id := *result.Outcome.ModelID
		s.ModelID = &id
	}
	if err := o.fire(steps.EventTrained, ranking.Summary(result.Outcome), result.Ranked); err != nil {
		return nil, err
	}
	return result, nil
}

// Reset replaces the session with a fresh one for the same project
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.unlock()
	if err := o.check(steps.EventReset); err != nil {
		return o.reject(steps.EventReset, err)
	}
	from := o.session.Phase
	o.session = types.NewBuildSession(o.session.ProjectID, o.session.ModelName)
	o.store.Replace(nil)
	o.machine.SetState(string(types.PhaseIdle))
	if from != types.PhaseIdle {
		metrics.PhaseTransitionCount.WithLabelValues(string(from), string(types.PhaseIdle)).Inc()
	}
	o.record(steps.EventReset, from, "Started a new session", nil)
	return nil
}

// Snapshot returns a deep copy of the session
func (o *Orchestrator) Snapshot() *types.BuildSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Clone()
}

// Phase returns the current phase
func (o *Orchestrator) Phase() types.Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Phase
}

// SessionID returns the id of the live session; it changes on Reset
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.ID
}

// Intent returns the intent under review; callers must not modify it
func (o *Orchestrator) Intent() *types.Intent {
	return o.store.Current()
}

func (o *Orchestrator) resolve(ctx context.Context, sel types.DatasetSelection, reuse *types.DatasetRef) (types.DatasetRef, error) {
	if reuse != nil {
		o.log.Debug("reusing uploaded dataset", "dataset_id", reuse.ID)
		return *reuse, nil
	}
	return o.resolver.Resolve(ctx, sel)
}

// reusableUpload returns the session's upload ref when sel asks for an
// upload but carries no file. Called with mu held.
func (o *Orchestrator) reusableUpload(sel types.DatasetSelection) *types.DatasetRef {
	ref := o.session.DatasetRef
	if sel.Mode != types.SourceUpload || sel.HasFile() || ref == nil || ref.SourceMode != types.SourceUpload {
		return nil
	}
	out := *ref
	return &out
}

// check rejects event when the session is busy or in the wrong phase
func (o *Orchestrator) check(event string) error {
	if o.session.Phase.Busy() {
		return &BusyError{Command: event, Phase: o.session.Phase}
	}
	_, err := steps.ValidateTransition(event, o.session.Phase)
	return err
}

// checkIntent is check for commands that need an intent
func (o *Orchestrator) checkIntent(event string) error {
	if o.session.Phase.Busy() {
		return &BusyError{Command: event, Phase: o.session.Phase}
	}
	if o.store.Current() == nil {
		return &types.InputError{Field: "intent", Message: "No intent available"}
	}
	_, err := steps.ValidateTransition(event, o.session.Phase)
	return err
}

func (o *Orchestrator) applyEdit(next *types.Intent, message string) error {
	s := o.session
	s.Intent = next
	s.Plan = nil
	s.Error = nil
	return o.fire(steps.EventEdit, message, next)
}

// failStep records err on the session and moves it to Errored
func (o *Orchestrator) failStep(step types.Phase, err error) error {
	o.mu.Lock()
	defer o.unlock()
	if step == types.PhaseResolvingDataset {
		o.session.DatasetRef = nil
	}
	info := errorInfo(step, err)
	o.session.Error = info
	o.log.Warn("build step failed", "session_id", o.session.ID, "step", step, "kind", info.Kind, "error", err)
	if ferr := o.fire(steps.EventFail, info.Message, info); ferr != nil {
		o.log.Error("failed to record step failure", "session_id", o.session.ID, "error", ferr)
	}
	return err
}

func (o *Orchestrator) reject(command string, err error) error {
	metrics.RejectedCommandCount.WithLabelValues(command, rejectReason(err)).Inc()
	o.log.Info("command rejected", "command", command, "error", err)
	return err
}

// fire moves the session along event. Called with mu held.
func (o *Orchestrator) fire(event, message string, content any) error {
	from := o.session.Phase
	target, err := steps.ValidateTransition(event, from)
	if err != nil {
		return err
	}
	if target != from {
		if err := o.machine.Event(event); err != nil {
			return fmt.Errorf("phase machine rejected %s from %s: %w", event, from, err)
		}
	}
	o.record(event, from, message, content)
	return nil
}

func (o *Orchestrator) record(event string, from types.Phase, message string, content any) {
	o.session.UpdatedAt = time.Now().UTC()
	o.log.Info("phase transition",
		"session_id", o.session.ID,
		"event", event,
		"from", from,
		"to", o.session.Phase)
	if o.onProgress != nil {
		o.pending = append(o.pending, ProgressEvent{
			Step:      string(o.session.Phase),
			Category:  event,
			Message:   message,
			SessionID: o.session.ID,
			Content:   content,
		})
	}
}

// unlock releases mu and then emits the progress events queued while it was held
func (o *Orchestrator) unlock() {
	events := o.pending
	o.pending = nil
	o.mu.Unlock()
	for _, e := range events {
		o.onProgress(e)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "an untyped"
	}
	return "a " + s
}
