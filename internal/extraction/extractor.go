// Package extraction turns a prompt and a dataset into a validated Intent.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/model-builder/internal/backend"
	"github.com/jonathan/model-builder/internal/logger"
	"github.com/jonathan/model-builder/internal/schemas"
	"github.com/jonathan/model-builder/internal/types"
	schemadocs "github.com/jonathan/model-builder/schemas"
)

// Source answers extraction requests; backend.Client and LLMSource implement it
type Source interface {
	ExtractIntent(ctx context.Context, req backend.ExtractIntentRequest) (*backend.ExtractIntentResponse, error)
}

// Result is a successful extraction
type Result struct {
	Intent      *types.Intent
	ModelID     *int
	Validation  types.ExtractionValidation
	DatasetInfo *types.DatasetInfo
	PlanPreview *types.ExperimentPlan
	RawPrompt   string
}

// Extractor is stateless between calls
type Extractor struct {
	source Source
	log    *logger.Logger
}

// New creates an extractor
func New(source Source, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{source: source, log: log}
}

// Extract sends the prompt and dataset to the source and validates the answer.
// Blank prompts and a missing dataset fail with *types.InputError before any
// call; every source failure is an *ExtractionError. Nothing is retried.
func (e *Extractor) Extract(ctx context.Context, prompt string, ref *types.DatasetRef) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, &types.InputError{Field: "prompt", Message: "prompt is empty"}
	}
	if ref == nil || ref.ID <= 0 {
		return nil, &types.InputError{Field: "dataset", Message: "no dataset selected"}
	}

	resp, err := e.source.ExtractIntent(ctx, backend.ExtractIntentRequest{Prompt: prompt, DatasetID: ref.ID})
	if err != nil {
		msg := backend.ServerMessage(err)
		if msg == "" {
			msg = DefaultFailure
		}
		return nil, &ExtractionError{Message: msg, Cause: err}
	}
	if !resp.Success {
		msg := strings.TrimSpace(resp.Error)
		if msg == "" {
			msg = DefaultFailure
		}
		return nil, &ExtractionError{Message: msg}
	}

	intent, warnings, err := DecodeIntent(resp.Intent)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Intent:      intent,
		ModelID:     resp.ModelID,
		Validation:  types.ExtractionValidation{IsValid: true},
		DatasetInfo: resp.DatasetInfo,
		RawPrompt:   resp.RawPrompt,
	}
	if resp.Validation != nil {
		result.Validation.IsValid = resp.Validation.IsValid
		result.Validation.Warnings = append(result.Validation.Warnings, resp.Validation.Warnings...)
	}
	result.Validation.Warnings = append(result.Validation.Warnings, warnings...)

	if target := intent.TargetColumn(); target != "" && !resp.DatasetInfo.HasColumn(target) {
		result.Validation.Warnings = append(result.Validation.Warnings,
			fmt.Sprintf("Target column %q is not one of the dataset columns", target))
	}

	if plan := bytes.TrimSpace(resp.ExperimentPlan); len(plan) > 0 && !bytes.Equal(plan, []byte("null")) {
		var preview types.ExperimentPlan
		if err := json.Unmarshal(plan, &preview); err != nil {
			e.log.Warn("ignoring unreadable plan preview", "dataset_id", ref.ID, "error", err)
		} else {
			result.PlanPreview = &preview
		}
	}

	e.log.Info("intent extracted",
		"dataset_id", ref.ID,
		"task_type", intent.TaskType(),
		"models", len(intent.ModelNames()),
		"warnings", len(result.Validation.Warnings))
	return result, nil
}

// DecodeIntent validates a raw intent document and decodes it. Duplicate
// models are dropped, first occurrence wins, and reported as warnings.
// Shape problems are returned as *ExtractionError.
func DecodeIntent(raw json.RawMessage) (*types.Intent, []string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil, &ExtractionError{Message: "Backend returned no intent"}
	}

	if err := schemas.ValidateJSONBytes(schemadocs.MustGet(schemadocs.Intent), raw); err != nil {
		var verr *schemas.ValidationError
		if errors.As(err, &verr) {
			return nil, nil, &ExtractionError{Message: "Backend returned a malformed intent: " + verr.Summary(), Cause: err}
		}
		return nil, nil, &ExtractionError{Message: "Backend returned a malformed intent", Cause: err}
	}

	var intent types.Intent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return nil, nil, &ExtractionError{Message: "Backend returned a malformed intent", Cause: err}
	}

	warnings := dedupeModels(&intent)
	if err := intent.Validate(); err != nil {
		return nil, nil, &ExtractionError{Message: "Backend returned an invalid intent", Cause: err}
	}
	return &intent, warnings, nil
}

func dedupeModels(in *types.Intent) []string {
	if in.SearchSpace == nil {
		return nil
	}
	var warnings []string
	seen := make(map[string]bool, len(in.SearchSpace.Models))
	kept := in.SearchSpace.Models[:0]
	for _, m := range in.SearchSpace.Models {
		if seen[m.Name] {
			warnings = append(warnings, fmt.Sprintf("Duplicate model %q removed from search space", m.Name))
			continue
		}
		seen[m.Name] = true
		kept = append(kept, m)
	}
	in.SearchSpace.Models = kept
	return warnings
}
