package web

// handlers_worker.go serves the callbacks an import worker uses to report
// progress. They are keyed by import id only: workers act on behalf of the
// organization that created the job.

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/importledger/internal/core"
	"github.com/go-chi/chi/v5"
)

type startValidationRequest struct {
	TotalRows int `json:"totalRows"`
}

type createRowsRequest struct {
	Rows []core.NewRow `json:"rows"`
}

type failRequest struct {
	ErrorMessage string `json:"errorMessage"`
}

// handleStartValidation moves an import to VALIDATING with its row count.
func (s *Server) handleStartValidation(w http.ResponseWriter, r *http.Request) {
	var req startValidationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondImport(w, r)(s.service.StartValidation(r.Context(), importID(r), req.TotalRows))
}

// handleCreateRows registers the PENDING row placeholders of an import.
func (s *Server) handleCreateRows(w http.ResponseWriter, r *http.Request) {
	var req createRowsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.CreateRowResults(r.Context(), importID(r), req.Rows); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]int{"created": len(req.Rows)})
}

// handleStartProcessing moves an import to PROCESSING.
func (s *Server) handleStartProcessing(w http.ResponseWriter, r *http.Request) {
	s.respondImport(w, r)(s.service.StartProcessing(r.Context(), importID(r)))
}

// handleUpdateRow records the outcome of one row.
func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	rowNumber, err := strconv.Atoi(chi.URLParam(r, "rowNumber"))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %q", core.ErrInvalidRowNumber, chi.URLParam(r, "rowNumber")))
		return
	}

	var outcome core.RowOutcome
	if err := decodeJSON(w, r, &outcome); err != nil {
		s.respondError(w, r, err)
		return
	}

	row, err := s.service.UpdateRowResult(r.Context(), importID(r), rowNumber, outcome)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if row == nil {
		s.respondError(w, r, fmt.Errorf("%w: row %d of %s", core.ErrRowNotFound, rowNumber, importID(r)))
		return
	}
	writeJSON(w, row)
}

// handleIncrementCounts applies counter increments.
func (s *Server) handleIncrementCounts(w http.ResponseWriter, r *http.Request) {
	var delta core.CounterDelta
	if err := decodeJSON(w, r, &delta); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.IncrementCounts(r.Context(), importID(r), delta); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePatchStatus applies a sparse import update.
func (s *Server) handlePatchStatus(w http.ResponseWriter, r *http.Request) {
	var patch core.ImportPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondImport(w, r)(s.service.UpdateImportStatus(r.Context(), importID(r), patch))
}

// handleComplete marks an import COMPLETED with the worker's final counts.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var counts core.FinalCounts
	if err := decodeJSON(w, r, &counts); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondImport(w, r)(s.service.Complete(r.Context(), importID(r), counts))
}

// handleFail marks an import FAILED.
func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	var req failRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondImport(w, r)(s.service.Fail(r.Context(), importID(r), req.ErrorMessage))
}

// respondImport writes the import returned by a worker callback.
func (s *Server) respondImport(w http.ResponseWriter, r *http.Request) func(*core.Import, error) {
	return func(imp *core.Import, err error) {
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, imp)
	}
}
