package intentstore

import (
	"encoding/json"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/model-builder/internal/types"
)

func sampleIntent() *types.Intent {
	return &types.Intent{
		Task: &types.TaskSpec{
			Type:         types.TaskClassification,
			Metric:       "f1",
			TargetColumn: "churn",
			CVFolds:      5,
		},
		Preprocessing: &types.PreprocessingSpec{
			MissingStrategy: &types.MissingStrategy{Numeric: types.MissingMedian},
			Scaling:         types.ScalingMinMax,
		},
		SearchSpace: &types.SearchSpace{Models: []types.ModelSpec{
			{Name: "random_forest", Params: map[string]any{"n_estimators": []any{100.0}}},
			{Name: "svm", Params: map[string]any{}},
			{Name: "knn", Params: map[string]any{"k": 3.0}},
		}},
	}
}

func TestSetField_ChangesOnlyThePath(t *testing.T) {
	in := sampleIntent()
	before := in.Clone()

	out, err := SetField(in, PathTaskMetric, "roc_auc")
	require.NoError(t, err)

	assert.Equal(t, before, in, "input is never mutated")
	assert.NotSame(t, in, out)
	assert.NotSame(t, in.Task, out.Task)
	assert.Equal(t, "roc_auc", out.Task.Metric)
	assert.Equal(t, in.Task.TargetColumn, out.Task.TargetColumn)
	assert.Equal(t, in.Task.CVFolds, out.Task.CVFolds)

	assert.Same(t, in.Preprocessing, out.Preprocessing)
	assert.Same(t, in.SearchSpace, out.SearchSpace)
}

func TestSetField_NestedPathSharesSiblings(t *testing.T) {
	in := sampleIntent()

	out, err := SetField(in, PathMissingCategorical, types.MissingConstant)
	require.NoError(t, err)

	assert.Same(t, in.Task, out.Task)
	assert.Same(t, in.SearchSpace, out.SearchSpace)
	assert.NotSame(t, in.Preprocessing, out.Preprocessing)
	assert.NotSame(t, in.Preprocessing.MissingStrategy, out.Preprocessing.MissingStrategy)

	assert.Equal(t, types.MissingMedian, out.Preprocessing.MissingStrategy.Numeric)
	assert.Equal(t, types.MissingConstant, out.Preprocessing.MissingStrategy.Categorical)
	assert.Equal(t, "", in.Preprocessing.MissingStrategy.Categorical)
	assert.Equal(t, types.ScalingMinMax, out.Preprocessing.Scaling)
}

func TestSetField_EveryPathLeavesOthersEqual(t *testing.T) {
	values := map[string]any{
		PathTaskType:             "regression",
		PathTaskMetric:           "rmse",
		PathTaskTargetColumn:     "price",
		PathTaskCVFolds:          10.0,
		PathTaskTestSize:         "0.3",
		PathMissingNumeric:       types.MissingMean,
		PathMissingCategorical:   types.MissingDrop,
		PathPreprocessingScaling: types.ScalingRobust,
		PathPreprocessingEncode:  types.EncodingLabel,
		PathSearchSpaceModels:    []any{map[string]any{"name": "ridge"}},
	}
	require.Len(t, values, len(Paths))

	for _, path := range Paths {
		t.Run(path, func(t *testing.T) {
			in := sampleIntent()
			out, err := SetField(in, path, values[path])
			require.NoError(t, err)

			switch path {
			case PathTaskType, PathTaskMetric, PathTaskTargetColumn, PathTaskCVFolds, PathTaskTestSize:
				assert.Same(t, in.Preprocessing, out.Preprocessing)
				assert.Same(t, in.SearchSpace, out.SearchSpace)
			case PathSearchSpaceModels:
				assert.Same(t, in.Task, out.Task)
				assert.Same(t, in.Preprocessing, out.Preprocessing)
				assert.Equal(t, []string{"ridge"}, out.ModelNames())
				assert.NotNil(t, out.SearchSpace.Models[0].Params)
			default:
				assert.Same(t, in.Task, out.Task)
				assert.Same(t, in.SearchSpace, out.SearchSpace)
			}
			assert.NoError(t, out.Validate())
		})
	}
}

func TestSetField_CreatesMissingSections(t *testing.T) {
	out, err := SetField(&types.Intent{}, PathTaskCVFolds, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Task.CVFolds)
	assert.Nil(t, out.Preprocessing)

	out, err = SetField(nil, PathMissingNumeric, "mean")
	require.NoError(t, err)
	assert.Equal(t, "mean", out.Preprocessing.MissingStrategy.Numeric)
}

func TestSetField_NilUnsets(t *testing.T) {
	out, err := SetField(sampleIntent(), PathTaskMetric, nil)
	require.NoError(t, err)
	assert.Equal(t, "", out.Task.Metric)

	data, err := json.Marshal(out.Task)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "metric")
}

func TestSetField_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		value any
	}{
		{"unknown path", "task.owner", "me"},
		{"unknown section", "dataset.id", 1},
		{"bad task type", PathTaskType, "ranking"},
		{"one fold", PathTaskCVFolds, 1},
		{"fractional folds", PathTaskCVFolds, 2.5},
		{"folds as word", PathTaskCVFolds, "five"},
		{"test size too big", PathTaskTestSize, 1.0},
		{"test size negative", PathTaskTestSize, -0.2},
		{"bad scaling", PathPreprocessingScaling, "log"},
		{"bad categorical", PathMissingCategorical, "mean"},
		{"knn imputation", PathMissingNumeric, "knn"},
		{"metric not a string", PathTaskMetric, 3},
		{"duplicate models", PathSearchSpaceModels, []types.ModelSpec{{Name: "a"}, {Name: "a"}}},
		{"unnamed model", PathSearchSpaceModels, []any{map[string]any{"params": map[string]any{}}}},
		{"models not a list", PathSearchSpaceModels, "random_forest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleIntent()
			before := in.Clone()

			out, err := SetField(in, tt.path, tt.value)
			require.Error(t, err)
			assert.Nil(t, out)

			var inErr *types.InputError
			require.True(t, errors.As(err, &inErr))
			assert.Equal(t, tt.path, inErr.Field)
			assert.Equal(t, before, in)
		})
	}
}

func sortedNames(in *types.Intent) []string {
	names := in.ModelNames()
	sort.Strings(names)
	return names
}

func TestToggleModel_IsItsOwnInverse(t *testing.T) {
	for _, name := range []string{"svm", "xgboost", "random_forest", "knn"} {
		in := sampleIntent()
		twice := ToggleModel(ToggleModel(in, name), name)
		assert.Equal(t, sortedNames(in), sortedNames(twice), name)
	}
}

func TestToggleModel_RemovePreservesOrderAndParams(t *testing.T) {
	in := sampleIntent()
	out := ToggleModel(in, "svm")

	assert.Equal(t, []string{"random_forest", "knn"}, out.ModelNames())
	assert.Equal(t, 3.0, out.SearchSpace.Models[1].Params["k"])
	assert.Equal(t, []string{"random_forest", "svm", "knn"}, in.ModelNames())
	assert.Same(t, in.Task, out.Task)
}

func TestToggleModel_AddAppendsWithEmptyParams(t *testing.T) {
	out := ToggleModel(sampleIntent(), "xgboost")
	assert.Equal(t, []string{"random_forest", "svm", "knn", "xgboost"}, out.ModelNames())
	assert.Equal(t, map[string]any{}, out.SearchSpace.Models[3].Params)

	fromEmpty := ToggleModel(nil, "ridge")
	assert.Equal(t, []string{"ridge"}, fromEmpty.ModelNames())
}

func TestStore(t *testing.T) {
	in := sampleIntent()
	s := NewStore(in)
	assert.Same(t, in, s.Current())
	assert.False(t, s.Changed(in))

	next, err := s.SetField(PathTaskTargetColumn, "cancelled")
	require.NoError(t, err)
	assert.Same(t, next, s.Current())
	assert.True(t, s.Changed(in))

	_, err = s.SetField(PathTaskCVFolds, 0.5)
	require.Error(t, err)
	assert.Same(t, next, s.Current(), "failed edits keep the current intent")

	toggled, err := s.ToggleModel("ridge")
	require.NoError(t, err)
	assert.True(t, toggled.HasModel("ridge"))

	_, err = s.ToggleModel("  ")
	assert.Error(t, err)

	s.Replace(nil)
	assert.Nil(t, s.Current())
}
