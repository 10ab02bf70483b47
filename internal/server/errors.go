// Package server provides the HTTP API for build sessions.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/model-builder/internal/backend"
	"github.com/jonathan/model-builder/internal/dataset"
	"github.com/jonathan/model-builder/internal/db"
	"github.com/jonathan/model-builder/internal/extraction"
	"github.com/jonathan/model-builder/internal/pipeline"
	"github.com/jonathan/model-builder/internal/pipeline/steps"
	"github.com/jonathan/model-builder/internal/training"
	"github.com/jonathan/model-builder/internal/types"
)

// ErrSessionNotFound indicates no live or saved session has the id
type ErrSessionNotFound struct {
	ID string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}

// ErrPersistenceDisabled is returned by endpoints that need a store when none is configured
type ErrPersistenceDisabled struct{}

func (e *ErrPersistenceDisabled) Error() string {
	return "session persistence is not configured"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		notFound     *ErrSessionNotFound
		disabled     *ErrPersistenceDisabled
		validation   *ErrValidation
		input        *types.InputError
		selection    *dataset.ValidationError
		busy         *pipeline.BusyError
		transition   *steps.TransitionError
		upload       *dataset.UploadError
		extractErr   *extraction.ExtractionError
		trainingErr  *training.TrainingError
		backendError *backend.APIError
	)
	switch {
	case err == nil:
		return http.StatusOK
	// step failures are upstream failures even when the backend answered 404
	case errors.As(err, &upload), errors.As(err, &extractErr), errors.As(err, &trainingErr):
		return http.StatusBadGateway
	case errors.As(err, &notFound), errors.Is(err, db.ErrSessionNotFound), backend.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &validation), errors.As(err, &input), errors.As(err, &selection):
		return http.StatusBadRequest
	case errors.As(err, &busy), errors.As(err, &transition):
		return http.StatusConflict
	case errors.As(err, &disabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &backendError):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage returns the text shown to API clients. Step failures carry a
// user-facing message separate from their wrapped cause.
func errorMessage(err error) string {
	var (
		input       *types.InputError
		selection   *dataset.ValidationError
		upload      *dataset.UploadError
		extractErr  *extraction.ExtractionError
		trainingErr *training.TrainingError
	)
	switch {
	case errors.As(err, &input):
		return input.Message
	case errors.As(err, &selection):
		return selection.Message
	case errors.As(err, &upload):
		return upload.Message
	case errors.As(err, &extractErr):
		return extractErr.Message
	case errors.As(err, &trainingErr):
		return trainingErr.Message
	case backend.ServerMessage(err) != "":
		return backend.ServerMessage(err)
	default:
		return err.Error()
	}
}
