// Package steps defines the build session's phase transitions: which event
// may fire from which phase and where it leads.
package steps

import (
	"fmt"
	"sort"

	"github.com/looplab/fsm"

	"github.com/jonathan/model-builder/internal/types"
)

// Event names
const (
	EventSubmit    = "submit"
	EventResolved  = "resolved"
	EventExtracted = "extracted"
	EventEdit      = "edit"
	EventCancel    = "cancel"
	EventTrain     = "train"
	EventTrained   = "trained"
	EventFail      = "fail"
	EventReset     = "reset"
)

// Event categories
const (
	CategoryCommand    = "command"    // issued by the user
	CategoryCompletion = "completion" // raised when an async call returns
)

// StepDefinition describes one transition of the phase machine
type StepDefinition struct {
	Name     string
	Category string
	Sources  []types.Phase
	Target   types.Phase
}

// StepRegistry holds all transitions keyed by event name
var StepRegistry = map[string]StepDefinition{
	EventSubmit: {
		Name:     EventSubmit,
		Category: CategoryCommand,
		Sources:  []types.Phase{types.PhaseIdle, types.PhaseErrored},
		Target:   types.PhaseResolvingDataset,
	},
	EventResolved: {
		Name:     EventResolved,
		Category: CategoryCompletion,
		Sources:  []types.Phase{types.PhaseResolvingDataset},
		Target:   types.PhaseExtractingIntent,
	},
	EventExtracted: {
		Name:     EventExtracted,
		Category: CategoryCompletion,
		Sources:  []types.Phase{types.PhaseExtractingIntent},
		Target:   types.PhaseReviewingIntent,
	},
	EventEdit: {
		Name:     EventEdit,
		Category: CategoryCommand,
		Sources:  []types.Phase{types.PhaseReviewingIntent, types.PhaseErrored},
		Target:   types.PhaseReviewingIntent,
	},
	EventCancel: {
		Name:     EventCancel,
		Category: CategoryCommand,
		Sources:  []types.Phase{types.PhaseReviewingIntent, types.PhaseErrored},
		Target:   types.PhaseIdle,
	},
	EventTrain: {
		Name:     EventTrain,
		Category: CategoryCommand,
		Sources:  []types.Phase{types.PhaseReviewingIntent, types.PhaseErrored},
		Target:   types.PhaseTraining,
	},
	EventTrained: {
		Name:     EventTrained,
		Category: CategoryCompletion,
		Sources:  []types.Phase{types.PhaseTraining},
		Target:   types.PhaseCompleted,
	},
	EventFail: {
		Name:     EventFail,
		Category: CategoryCompletion,
		Sources:  []types.Phase{types.PhaseResolvingDataset, types.PhaseExtractingIntent, types.PhaseTraining},
		Target:   types.PhaseErrored,
	},
	EventReset: {
		Name:     EventReset,
		Category: CategoryCommand,
		Sources:  []types.Phase{types.PhaseIdle, types.PhaseReviewingIntent, types.PhaseErrored, types.PhaseCompleted},
		Target:   types.PhaseIdle,
	},
}

// TransitionError is returned when an event cannot fire from the current phase
type TransitionError struct {
	Event string
	From  types.Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Event, e.From)
}

// ValidateTransition checks that event may fire from phase and returns its target
func ValidateTransition(event string, from types.Phase) (types.Phase, error) {
	def, ok := StepRegistry[event]
	if !ok {
		return "", fmt.Errorf("unknown event: %s", event)
	}
	for _, src := range def.Sources {
		if src == from {
			return def.Target, nil
		}
	}
	return "", &TransitionError{Event: event, From: from}
}

// Allowed reports whether event may fire from phase
func Allowed(event string, from types.Phase) bool {
	_, err := ValidateTransition(event, from)
	return err == nil
}

// AvailableCommands returns the user commands accepted in phase, sorted
func AvailableCommands(from types.Phase) []string {
	var available []string
	for name, def := range StepRegistry {
		if def.Category != CategoryCommand {
			continue
		}
		if Allowed(name, from) {
			available = append(available, name)
		}
	}
	sort.Strings(available)
	return available
}

// Events converts the registry into fsm event descriptions. Transitions that
// would not change the phase are left out; the caller handles those without
// firing the machine.
func Events() fsm.Events {
	names := make([]string, 0, len(StepRegistry))
	for name := range StepRegistry {
		names = append(names, name)
	}
	sort.Strings(names)

	events := fsm.Events{}
	for _, name := range names {
		def := StepRegistry[name]
		var src []string
		for _, s := range def.Sources {
			if s != def.Target {
				src = append(src, string(s))
			}
		}
		if len(src) == 0 {
			continue
		}
		events = append(events, fsm.EventDesc{Name: name, Src: src, Dst: string(def.Target)})
	}
	return events
}

// NewMachine creates a phase machine starting at initial
func NewMachine(initial types.Phase, callbacks fsm.Callbacks) *fsm.FSM {
	if callbacks == nil {
		callbacks = fsm.Callbacks{}
	}
	return fsm.NewFSM(string(initial), Events(), callbacks)
}
