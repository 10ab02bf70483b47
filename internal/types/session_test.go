//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase_DerivedFlags(t *testing.T) {
	for _, p := range AllPhases {
		busyCount := 0
		for _, flag := range []bool{p.Resolving(), p.Extracting(), p.Training()} {
			if flag {
				busyCount++
			}
		}
		assert.LessOrEqual(t, busyCount, 1, "phase %s sets more than one busy flag", p)
		assert.Equal(t, busyCount == 1, p.Busy(), "phase %s", p)
	}

	assert.False(t, PhaseIdle.Busy())
	assert.False(t, PhaseReviewingIntent.Busy())
	assert.False(t, PhaseCompleted.Busy())
	assert.False(t, PhaseErrored.Busy())
	assert.True(t, PhaseTraining.Training())
}

func TestNewBuildSession(t *testing.T) {
	s := NewBuildSession(4, "churn model")
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, 4, s.ProjectID)
	assert.False(t, s.CreatedAt.IsZero())
}

func TestBuildSession_CloneDropsReaderAndCopiesState(t *testing.T) {
	modelID := 9
	score := 0.9
	s := NewBuildSession(1, "m")
	s.Selection = DatasetSelection{Mode: SourceUpload, FileName: "a.csv", File: strings.NewReader("x")}
	s.DatasetRef = &DatasetRef{ID: 3, SourceMode: SourceUpload}
	s.ModelID = &modelID
	s.Intent = &Intent{Task: &TaskSpec{Type: TaskRegression}}
	s.Outcome = &TrainingOutcome{Results: []ExperimentResult{{ExpID: "a", TestScore: &score}}}
	s.Error = &ErrorInfo{Step: PhaseTraining, Message: "boom"}

	c := s.Clone()
	require.NotNil(t, c)
	assert.Nil(t, c.Selection.File)
	assert.Equal(t, "a.csv", c.Selection.FileName)
	assert.NotSame(t, s.DatasetRef, c.DatasetRef)
	assert.NotSame(t, s.Intent, c.Intent)
	assert.Equal(t, s.Intent, c.Intent)

	c.Outcome.Results[0].ExpID = "changed"
	assert.Equal(t, "a", s.Outcome.Results[0].ExpID)
	c.Error.Message = "other"
	assert.Equal(t, "boom", s.Error.Message)
}

func TestBuildSession_CloneCopiesOutcomeScores(t *testing.T) {
	modelID, best := 4, 0.8
	cv, test, secs := 0.7, 0.8, 1.5
	s := NewBuildSession(1, "m")
	s.Outcome = &TrainingOutcome{
		ModelID:   &modelID,
		BestScore: &best,
		Results:   []ExperimentResult{{ExpID: "a", CVMean: &cv, TestScore: &test, TrainingTimeSeconds: &secs}},
	}

	c := s.Clone()
	require.NotNil(t, c.Outcome)
	assert.Equal(t, s.Outcome, c.Outcome)

	*c.Outcome.ModelID = 99
	*c.Outcome.BestScore = 0.1
	*c.Outcome.Results[0].CVMean = 0.1
	*c.Outcome.Results[0].TestScore = 0.1
	*c.Outcome.Results[0].TrainingTimeSeconds = 9

	assert.Equal(t, 4, *s.Outcome.ModelID)
	assert.Equal(t, 0.8, *s.Outcome.BestScore)
	assert.Equal(t, 0.7, *s.Outcome.Results[0].CVMean)
	assert.Equal(t, 0.8, *s.Outcome.Results[0].TestScore)
	assert.Equal(t, 1.5, *s.Outcome.Results[0].TrainingTimeSeconds)
}

func TestDatasetInfo_HasColumn(t *testing.T) {
	info := &DatasetInfo{Columns: []string{"age", "churn"}}
	assert.True(t, info.HasColumn("churn"))
	assert.False(t, info.HasColumn("income"))

	var unknown *DatasetInfo
	assert.True(t, unknown.HasColumn("anything"))
}

func TestTrainingOutcome_Failed(t *testing.T) {
	o := &TrainingOutcome{Results: []ExperimentResult{
		{ExpID: "a", Status: ExperimentCompleted},
		{ExpID: "b", Status: ExperimentFailed},
	}}
	failed := o.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].ExpID)
	assert.Equal(t, 0.0, failed[0].Score())
}

func TestModelRecord_HasIntent(t *testing.T) {
	assert.False(t, (&ModelRecord{}).HasIntent())
	assert.False(t, (&ModelRecord{Intent: []byte("null")}).HasIntent())
	assert.True(t, (&ModelRecord{Intent: []byte(`{"task":{}}`)}).HasIntent())
}
