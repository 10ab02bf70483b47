package dataset

import (
	"context"
	"strconv"
	"strings"

	"github.com/jonathan/model-builder/internal/backend"
	"github.com/jonathan/model-builder/internal/logger"
	"github.com/jonathan/model-builder/internal/types"
)

// DefaultUploadFailure is shown when the backend gives no reason
const DefaultUploadFailure = "Failed to upload dataset"

// Uploader creates backend dataset records
type Uploader interface {
	UploadDataset(ctx context.Context, req backend.UploadRequest) (*types.Dataset, error)
}

// Refresher is told when the known-dataset list is stale
type Refresher interface {
	RefreshAsync(projectID int)
}

// Resolver resolves selections for one project
type Resolver struct {
	uploader  Uploader
	refresher Refresher
	projectID int
	log       *logger.Logger
}

// NewResolver creates a resolver. refresher may be nil.
func NewResolver(uploader Uploader, refresher Refresher, projectID int, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{uploader: uploader, refresher: refresher, projectID: projectID, log: log}
}

// Validate checks that a selection is complete without touching the network.
func Validate(sel types.DatasetSelection) error {
	switch sel.Mode {
	case types.SourceUpload:
		if !sel.HasFile() {
			return &ValidationError{Field: "file", Message: "no file attached"}
		}
	case types.SourceSelect:
		if _, err := SelectedID(sel); err != nil {
			return err
		}
	case "":
		return &ValidationError{Field: "mode", Message: "no dataset source chosen"}
	default:
		return &ValidationError{Field: "mode", Message: "unknown source mode " + strconv.Quote(string(sel.Mode))}
	}
	return nil
}

// SelectedID parses the dataset id picked in select mode
func SelectedID(sel types.DatasetSelection) (int, error) {
	raw := strings.TrimSpace(sel.DatasetID)
	if raw == "" {
		return 0, &ValidationError{Field: "dataset_id", Message: "no dataset selected"}
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, &ValidationError{Field: "dataset_id", Message: "must be a positive integer"}
	}
	return id, nil
}

// Resolve turns a selection into a DatasetRef. In upload mode the file is sent
// to the backend and the known-dataset list is refreshed in the background.
func (r *Resolver) Resolve(ctx context.Context, sel types.DatasetSelection) (types.DatasetRef, error) {
	if err := Validate(sel); err != nil {
		return types.DatasetRef{}, err
	}

	if sel.Mode == types.SourceSelect {
		id, _ := SelectedID(sel)
		return types.DatasetRef{ID: id, SourceMode: types.SourceSelect}, nil
	}

	ds, err := r.uploader.UploadDataset(ctx, backend.UploadRequest{
		FileName:    sel.FileName,
		File:        sel.File,
		Name:        sel.Name,
		Description: sel.Description,
		ProjectID:   r.projectID,
	})
	if err != nil {
		msg := backend.ServerMessage(err)
		if msg == "" {
			msg = DefaultUploadFailure
		}
		return types.DatasetRef{}, &UploadError{Message: msg, Cause: err}
	}
	if ds.ID <= 0 {
		return types.DatasetRef{}, &UploadError{Message: DefaultUploadFailure + ": backend returned no id"}
	}

	r.log.Info("dataset uploaded", "dataset_id", ds.ID, "project_id", r.projectID, "file_name", sel.FileName)
	if r.refresher != nil {
		r.refresher.RefreshAsync(r.projectID)
	}
	return types.DatasetRef{ID: ds.ID, SourceMode: types.SourceUpload}, nil
}
