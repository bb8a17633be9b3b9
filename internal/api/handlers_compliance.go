package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/service"
)

// AnalyzeRequest is the POST /api/compliance/analyze body
type AnalyzeRequest struct {
	Address string `json:"address"`
}

// handleAnalyze handles POST /api/compliance/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		respondServiceError(w, apperrors.NewInvalidParameterError("address", "is required"))
		return
	}

	analysis, err := s.risk.AnalyzeAddress(r.Context(), req.Address)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, analysis, analysis.Degraded)
}

// handleKnownEntities handles GET /api/compliance/entities
func (s *Server) handleKnownEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.explorer.GetKnownEntities(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, entities, entities.Degraded)
}

// handleListLabels handles GET /api/labels?category=&limit=
func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	// the service applies the default and the cap
	limit := parseLimit(r, 0, 1<<20)

	list, err := s.labeling.ListLabels(r.Context(), category, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, list, false)
}

// handleAddLabel handles POST /api/labels
func (s *Server) handleAddLabel(w http.ResponseWriter, r *http.Request) {
	var input service.AddLabelInput
	if err := parseJSONBody(r, &input); err != nil {
		respondServiceError(w, err)
		return
	}

	label, err := s.labeling.AddLabel(r.Context(), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusCreated, label, false)
}

// handleDeleteLabel handles DELETE /api/labels/{id}
func (s *Server) handleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if err := s.labeling.DeleteLabel(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, Envelope{Success: true, Message: "Label deleted"})
}

// handleAutoLabeling handles POST /api/labeling/auto. The run is synchronous; job failures are
// reported in the report's errors and mark the response degraded.
func (s *Server) handleAutoLabeling(w http.ResponseWriter, r *http.Request) {
	report := s.labeling.RunAutoLabeling(r.Context())

	respondJSON(w, http.StatusOK, Envelope{
		Success:  true,
		Data:     report,
		Degraded: len(report.Errors) > 0,
		Message:  fmt.Sprintf("Auto-labeled %d addresses", report.Total()),
	})
}
