// Package intentstore holds the user-edited Intent and applies whole-field,
// copy-on-write updates to it.
package intentstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/model-builder/internal/types"
)

// Editable field paths
const (
	PathTaskType             = "task.type"
	PathTaskMetric           = "task.metric"
	PathTaskTargetColumn     = "task.target_column"
	PathTaskCVFolds          = "task.cv_folds"
	PathTaskTestSize         = "task.test_size"
	PathMissingNumeric       = "preprocessing.missing_strategy.numeric"
	PathMissingCategorical   = "preprocessing.missing_strategy.categorical"
	PathPreprocessingScaling = "preprocessing.scaling"
	PathPreprocessingEncode  = "preprocessing.encoding"
	PathSearchSpaceModels    = "search_space.models"
)

// Paths lists every editable path
var Paths = []string{
	PathTaskType, PathTaskMetric, PathTaskTargetColumn, PathTaskCVFolds, PathTaskTestSize,
	PathMissingNumeric, PathMissingCategorical, PathPreprocessingScaling, PathPreprocessingEncode,
	PathSearchSpaceModels,
}

var validate = validator.New()

// SetField returns a new Intent that differs from in only at path. The
// sub-structs on the path are copied; every other sub-struct is shared with
// in, which is never modified. A nil value unsets the field.
func SetField(in *types.Intent, path string, value any) (*types.Intent, error) {
	out := &types.Intent{}
	if in != nil {
		*out = *in
	}

	switch path {
	case PathTaskType, PathTaskMetric, PathTaskTargetColumn, PathTaskCVFolds, PathTaskTestSize:
		task := &types.TaskSpec{}
		if out.Task != nil {
			*task = *out.Task
		}
		if err := setTaskField(task, path, value); err != nil {
			return nil, err
		}
		if err := validate.Struct(task); err != nil {
			return nil, fieldError(path, value, err)
		}
		out.Task = task

	case PathMissingNumeric, PathMissingCategorical, PathPreprocessingScaling, PathPreprocessingEncode:
		pre := &types.PreprocessingSpec{}
		if out.Preprocessing != nil {
			*pre = *out.Preprocessing
		}
		s, err := stringValue(path, value)
		if err != nil {
			return nil, err
		}
		switch path {
		case PathPreprocessingScaling:
			pre.Scaling = s
		case PathPreprocessingEncode:
			pre.Encoding = s
		default:
			ms := &types.MissingStrategy{}
			if pre.MissingStrategy != nil {
				*ms = *pre.MissingStrategy
			}
			if path == PathMissingNumeric {
				ms.Numeric = s
			} else {
				ms.Categorical = s
			}
			if err := validate.Struct(ms); err != nil {
				return nil, fieldError(path, value, err)
			}
			pre.MissingStrategy = ms
		}
		if err := validate.Struct(pre); err != nil {
			return nil, fieldError(path, value, err)
		}
		out.Preprocessing = pre

	case PathSearchSpaceModels:
		models, err := modelsValue(value)
		if err != nil {
			return nil, err
		}
		space := &types.SearchSpace{Models: models}
		if err := validate.Struct(space); err != nil {
			return nil, fieldError(path, value, err)
		}
		out.SearchSpace = space

	default:
		return nil, &types.InputError{Field: path, Message: "unknown intent field"}
	}

	return out, nil
}

// ToggleModel adds {name, params: {}} when the model is absent and removes it
// otherwise. The remaining models keep their order and their params.
func ToggleModel(in *types.Intent, name string) *types.Intent {
	out := &types.Intent{}
	if in != nil {
		*out = *in
	}

	var current []types.ModelSpec
	if out.SearchSpace != nil {
		current = out.SearchSpace.Models
	}

	models := make([]types.ModelSpec, 0, len(current)+1)
	found := false
	for _, m := range current {
		if m.Name == name {
			found = true
			continue
		}
		models = append(models, m)
	}
	if !found {
		models = append(models, types.ModelSpec{Name: name, Params: map[string]any{}})
	}

	out.SearchSpace = &types.SearchSpace{Models: models}
	return out
}

// Store holds the current Intent. Every update replaces the pointer, so
// readers can detect a change by comparing pointers.
type Store struct {
	mu      sync.RWMutex
	current *types.Intent
}

// NewStore creates a store holding in
func NewStore(in *types.Intent) *Store {
	return &Store{current: in}
}

// Current returns the current Intent; callers must not modify it
func (s *Store) Current() *types.Intent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace swaps in a new Intent, e.g. after an extraction
func (s *Store) Replace(in *types.Intent) {
	s.mu.Lock()
	s.current = in
	s.mu.Unlock()
}

// SetField applies SetField to the current Intent
func (s *Store) SetField(path string, value any) (*types.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := SetField(s.current, path, value)
	if err != nil {
		return nil, err
	}
	s.current = next
	return next, nil
}

// ToggleModel applies ToggleModel to the current Intent
func (s *Store) ToggleModel(name string) (*types.Intent, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &types.InputError{Field: PathSearchSpaceModels, Message: "model name is empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = ToggleModel(s.current, name)
	return s.current, nil
}

// Changed reports whether the current Intent is a different value than prev
func (s *Store) Changed(prev *types.Intent) bool {
	return s.Current() != prev
}

func setTaskField(task *types.TaskSpec, path string, value any) error {
	switch path {
	case PathTaskCVFolds:
		n, err := intValue(path, value)
		if err != nil {
			return err
		}
		task.CVFolds = n
	case PathTaskTestSize:
		f, err := floatValue(path, value)
		if err != nil {
			return err
		}
		task.TestSize = f
	default:
		s, err := stringValue(path, value)
		if err != nil {
			return err
		}
		switch path {
		case PathTaskType:
			task.Type = types.TaskType(s)
		case PathTaskMetric:
			task.Metric = s
		case PathTaskTargetColumn:
			task.TargetColumn = s
		}
	}
	return nil
}

func stringValue(path string, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case types.TaskType:
		return string(v), nil
	default:
		return "", &types.InputError{Field: path, Message: fmt.Sprintf("expected a string, got %T", value)}
	}
}

func intValue(path string, value any) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, &types.InputError{Field: path, Message: "expected a whole number"}
		}
		return int(v), nil
	case json.Number:
		n, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, &types.InputError{Field: path, Message: "expected a whole number"}
		}
		return n, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, &types.InputError{Field: path, Message: "expected a whole number"}
		}
		return n, nil
	default:
		return 0, &types.InputError{Field: path, Message: fmt.Sprintf("expected a number, got %T", value)}
	}
}

func floatValue(path string, value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, &types.InputError{Field: path, Message: "expected a number"}
		}
		return f, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, &types.InputError{Field: path, Message: "expected a number"}
		}
		return f, nil
	default:
		return 0, &types.InputError{Field: path, Message: fmt.Sprintf("expected a number, got %T", value)}
	}
}

// modelsValue accepts a typed model list or its decoded JSON form
func modelsValue(value any) ([]types.ModelSpec, error) {
	switch v := value.(type) {
	case nil:
		return []types.ModelSpec{}, nil
	case []types.ModelSpec:
		return types.CloneModels(v), nil
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, &types.InputError{Field: PathSearchSpaceModels, Message: "expected a list of models"}
		}
		var models []types.ModelSpec
		if err := json.Unmarshal(raw, &models); err != nil {
			return nil, &types.InputError{Field: PathSearchSpaceModels, Message: "expected a list of models"}
		}
		for i := range models {
			if models[i].Params == nil {
				models[i].Params = map[string]any{}
			}
		}
		return models, nil
	}
}

func fieldError(path string, value any, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &types.InputError{Field: path, Message: fmt.Sprintf("value %v failed %q", value, ruleText(fe))}
	}
	return &types.InputError{Field: path, Message: err.Error()}
}

func ruleText(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
