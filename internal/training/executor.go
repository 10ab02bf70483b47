// Package training submits an Intent to the backend, which compiles it into
// an experiment plan and runs every experiment.
package training

import (
	"context"
	"strings"
	"time"

	"github.com/jonathan/model-builder/internal/backend"
	"github.com/jonathan/model-builder/internal/dataset"
	"github.com/jonathan/model-builder/internal/logger"
	"github.com/jonathan/model-builder/internal/metrics"
	"github.com/jonathan/model-builder/internal/ranking"
	"github.com/jonathan/model-builder/internal/types"
)

// Trainer runs training requests; backend.Client implements it
type Trainer interface {
	Train(ctx context.Context, req backend.TrainRequest) (*backend.TrainResponse, error)
}

// Request carries everything needed to start training
type Request struct {
	Intent      *types.Intent
	Selection   types.DatasetSelection
	DatasetRef  *types.DatasetRef
	DatasetInfo *types.DatasetInfo
	ModelID     *int
	ProjectID   int
	ModelName   string
}

// Result is a finished training run
type Result struct {
	Outcome   *types.TrainingOutcome
	Plan      *types.ExperimentPlan
	Ranked    []types.ExperimentResult
	DatasetID int
}

// Executor starts training runs
type Executor struct {
	trainer          Trainer
	defaultDatasetID int
	log              *logger.Logger
}

// NewExecutor creates an executor. defaultDatasetID is used only when no
// other dataset id is known.
func NewExecutor(trainer Trainer, defaultDatasetID int, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.Nop()
	}
	return &Executor{trainer: trainer, defaultDatasetID: defaultDatasetID, log: log}
}

// ResolveDatasetID picks the dataset to train on: an explicit select-mode
// choice, then the id reported by the latest extraction, then the resolved
// DatasetRef, then the configured default.
func ResolveDatasetID(sel types.DatasetSelection, info *types.DatasetInfo, ref *types.DatasetRef, fallback int) int {
	if sel.Mode == types.SourceSelect {
		if id, err := dataset.SelectedID(sel); err == nil {
			return id
		}
	}
	if info != nil && info.DatasetID != nil && *info.DatasetID > 0 {
		return *info.DatasetID
	}
	if ref != nil && ref.ID > 0 {
		return ref.ID
	}
	return fallback
}

// StartTraining sends the intent to the backend and waits for the outcome.
// The intent is sent as is; it is never modified.
func (e *Executor) StartTraining(ctx context.Context, req Request) (*Result, error) {
	if req.Intent == nil {
		return nil, &types.InputError{Field: "intent", Message: "No intent available"}
	}

	datasetID := ResolveDatasetID(req.Selection, req.DatasetInfo, req.DatasetRef, e.defaultDatasetID)
	if datasetID <= 0 {
		return nil, &types.InputError{Field: "dataset", Message: "no dataset selected"}
	}

	start := time.Now()
	resp, err := e.trainer.Train(ctx, backend.TrainRequest{
		Intent:    req.Intent,
		ModelID:   req.ModelID,
		DatasetID: datasetID,
		ProjectID: req.ProjectID,
		ModelName: req.ModelName,
	})
	if err != nil {
		msg := backend.ServerMessage(err)
		if msg == "" {
			msg = DefaultFailure
		}
		return nil, &TrainingError{Message: msg, Cause: err}
	}
	if !resp.Success {
		msg := strings.TrimSpace(resp.Error)
		if msg == "" {
			msg = DefaultFailure
		}
		return nil, &TrainingError{Message: msg}
	}

	outcome := resp.Outcome()
	if outcome.ModelID == nil {
		outcome.ModelID = req.ModelID
	}
	for _, r := range outcome.Results {
		metrics.ExperimentResultCount.WithLabelValues(string(r.Status)).Inc()
	}

	e.log.Info("training finished",
		"dataset_id", datasetID,
		"training_run_id", outcome.TrainingRunID,
		"experiments", outcome.TotalExperiments,
		"failed", len(outcome.Failed()),
		"best_experiment_id", outcome.BestExperimentID,
		"duration_ms", time.Since(start).Milliseconds())

	return &Result{
		Outcome:   outcome,
		Plan:      resp.ExperimentPlan,
		Ranked:    ranking.RankResults(outcome.Results),
		DatasetID: datasetID,
	}, nil
}
