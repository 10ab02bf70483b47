package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/model-builder/internal/types"
)

func TestStepRegistry(t *testing.T) {
	expected := []string{
		EventSubmit, EventResolved, EventExtracted, EventEdit, EventCancel,
		EventTrain, EventTrained, EventFail, EventReset,
	}

	for _, name := range expected {
		def, ok := StepRegistry[name]
		require.True(t, ok, "Event %s should be in registry", name)
		assert.Equal(t, name, def.Name)
		assert.NotEmpty(t, def.Category)
		assert.NotEmpty(t, def.Sources)
	}
	assert.Len(t, StepRegistry, len(expected))
}

func TestValidateTransition_HappyPath(t *testing.T) {
	flow := []struct {
		event string
		from  types.Phase
		to    types.Phase
	}{
		{EventSubmit, types.PhaseIdle, types.PhaseResolvingDataset},
		{EventResolved, types.PhaseResolvingDataset, types.PhaseExtractingIntent},
		{EventExtracted, types.PhaseExtractingIntent, types.PhaseReviewingIntent},
		{EventEdit, types.PhaseReviewingIntent, types.PhaseReviewingIntent},
		{EventTrain, types.PhaseReviewingIntent, types.PhaseTraining},
		{EventTrained, types.PhaseTraining, types.PhaseCompleted},
		{EventReset, types.PhaseCompleted, types.PhaseIdle},
	}

	for _, step := range flow {
		to, err := ValidateTransition(step.event, step.from)
		require.NoError(t, err, "%s from %s", step.event, step.from)
		assert.Equal(t, step.to, to)
	}
}

func TestValidateTransition_ErroredIsNotTerminal(t *testing.T) {
	for _, event := range []string{EventSubmit, EventTrain, EventEdit, EventCancel, EventReset} {
		assert.True(t, Allowed(event, types.PhaseErrored), event)
	}
}

func TestValidateTransition_FailReachableFromBusyPhasesOnly(t *testing.T) {
	for _, p := range types.AllPhases {
		assert.Equal(t, p.Busy(), Allowed(EventFail, p), "fail from %s", p)
	}
}

func TestValidateTransition_Rejects(t *testing.T) {
	_, err := ValidateTransition(EventSubmit, types.PhaseExtractingIntent)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, EventSubmit, te.Event)
	assert.Equal(t, types.PhaseExtractingIntent, te.From)
	assert.Contains(t, err.Error(), "cannot submit while extracting_intent")

	assert.False(t, Allowed(EventSubmit, types.PhaseCompleted))
	assert.False(t, Allowed(EventTrain, types.PhaseIdle))
	assert.False(t, Allowed(EventCancel, types.PhaseTraining))
}

func TestValidateTransition_UnknownEvent(t *testing.T) {
	_, err := ValidateTransition("launch", types.PhaseIdle)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event")
}

func TestAvailableCommands(t *testing.T) {
	assert.Equal(t, []string{EventReset, EventSubmit}, AvailableCommands(types.PhaseIdle))
	assert.Equal(t, []string{EventCancel, EventEdit, EventReset, EventTrain}, AvailableCommands(types.PhaseReviewingIntent))
	assert.Empty(t, AvailableCommands(types.PhaseTraining))
	assert.Equal(t, []string{EventReset}, AvailableCommands(types.PhaseCompleted))
}

func TestEvents_SkipSelfTransitions(t *testing.T) {
	for _, desc := range Events() {
		for _, src := range desc.Src {
			assert.NotEqual(t, desc.Dst, src, "event %s", desc.Name)
		}
	}
}

func TestNewMachine_FollowsRegistry(t *testing.T) {
	m := NewMachine(types.PhaseIdle, nil)
	assert.Equal(t, string(types.PhaseIdle), m.Current())

	require.NoError(t, m.Event(EventSubmit))
	require.NoError(t, m.Event(EventResolved))
	require.NoError(t, m.Event(EventExtracted))
	require.NoError(t, m.Event(EventTrain))
	require.NoError(t, m.Event(EventFail))
	assert.Equal(t, string(types.PhaseErrored), m.Current())

	assert.True(t, m.Can(EventTrain))
	assert.False(t, m.Can(EventTrained))
	assert.Error(t, m.Event(EventTrained))
}
