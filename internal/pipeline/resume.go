package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jonathan/model-builder/internal/extraction"
	"github.com/jonathan/model-builder/internal/types"
)

// ModelGetter loads a model record; backend.Client implements it
type ModelGetter interface {
	GetModel(ctx context.Context, id int) (*types.ModelRecord, error)
}

// ResumeSession rebuilds a session from a saved draft model. The stored
// intent and dataset are loaded as they are; nothing is extracted again, and
// the plan and outcome stay empty until training is confirmed.
func ResumeSession(ctx context.Context, models ModelGetter, modelID int) (*types.BuildSession, error) {
	if modelID <= 0 {
		return nil, &types.InputError{Field: "model_id", Message: "must be a positive integer"}
	}
	rec, err := models.GetModel(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %d: %w", modelID, err)
	}
	if !rec.HasIntent() {
		return nil, &types.InputError{Field: "intent", Message: fmt.Sprintf("Model %d has no saved intent", modelID)}
	}

	intent, warnings, err := extraction.DecodeIntent(rec.Intent)
	if err != nil {
		return nil, err
	}

	projectID := 0
	if rec.Project != nil {
		projectID = *rec.Project
	}
	session := types.NewBuildSession(projectID, rec.Name)
	id := rec.ID
	session.ModelID = &id
	session.Intent = intent
	session.Validation = &types.ExtractionValidation{IsValid: len(warnings) == 0, Warnings: warnings}
	if rec.Dataset != nil && *rec.Dataset > 0 {
		session.DatasetRef = &types.DatasetRef{ID: *rec.Dataset, SourceMode: types.SourceSelect}
		session.Selection = types.DatasetSelection{Mode: types.SourceSelect, DatasetID: strconv.Itoa(*rec.Dataset)}
	}
	session.Phase = types.PhaseReviewingIntent
	return session, nil
}
