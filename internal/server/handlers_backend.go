package server

import (
	"net/http"
	"strconv"
)

// handleListDatasets handles GET /projects/{id}/datasets. ?refresh=true
// bypasses the catalog's cached list.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathInt(r, "id")
	if err != nil {
		s.failResponse(w, err)
		return
	}

	load := s.deps.Datasets.Datasets
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		load = s.deps.Datasets.Refresh
	}
	datasets, err := load(r.Context(), projectID)
	if err != nil {
		s.failResponse(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"project_id": projectID,
		"datasets":   datasets,
		"count":      len(datasets),
	})
}

// handleDeleteModel handles DELETE /models/{id}
func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	modelID, err := pathInt(r, "id")
	if err != nil {
		s.failResponse(w, err)
		return
	}
	if err := s.deps.Models.DeleteModel(r.Context(), modelID); err != nil {
		s.failResponse(w, err)
		return
	}
	s.log.Info("model deleted", "model_id", modelID)
	w.WriteHeader(http.StatusNoContent)
}

// pathInt parses a positive integer path value
func pathInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil || n <= 0 {
		return 0, &ErrValidation{Field: name, Message: "must be a positive integer"}
	}
	return n, nil
}
