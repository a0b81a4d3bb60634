package web

// handlers_imports.go serves the organization-scoped import ledger API.

import (
	"net/http"

	"github.com/JonMunkholm/importledger/internal/core"
	"github.com/JonMunkholm/importledger/internal/logging"
)

// createImportRequest describes an uploaded file. Storing the file is the
// caller's job; only its location is recorded.
type createImportRequest struct {
	EntityType core.EntityType `json:"entityType"`
	FileName   string          `json:"fileName"`
	FileSize   int64           `json:"fileSize"`
	FileURL    string          `json:"fileUrl"`
}

// handleListImports returns a page of the caller's imports, newest first.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	status, err := parseEnumParam(r, "status", core.ParseImportStatus)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	entityType, err := parseEnumParam(r, "entityType", core.ParseEntityType)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	page, err := s.service.ListImports(r.Context(), identity(r).OrganizationID, core.ListImportsOptions{
		Status:      status,
		EntityType:  entityType,
		PageRequest: parsePage(r),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, page)
}

// handleCreateImport records a new import and dispatches its job.
func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	var req createImportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	imp, err := s.service.StartImport(ctx, identity(r), core.CreateImportInput{
		EntityType: req.EntityType,
		FileName:   req.FileName,
		FileSize:   req.FileSize,
	}, req.FileURL)
	if err != nil {
		if imp != nil {
			logging.WithFields(ctx, "import_id", imp.ID).Warn("import created but not dispatched")
		}
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/imports/"+imp.ID)
	writeJSONStatus(w, http.StatusCreated, imp)
}

// handleGetImport returns one import.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	imp, err := s.service.GetImport(r.Context(), identity(r).OrganizationID, importID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, imp)
}

// handleImportResults returns an import with one page of its row results.
func (s *Server) handleImportResults(w http.ResponseWriter, r *http.Request) {
	status, err := parseEnumParam(r, "status", core.ParseRowStatus)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.GetImportWithResults(r.Context(), identity(r).OrganizationID, importID(r), core.ListRowsOptions{
		Status:      status,
		PageRequest: parsePage(r),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// handleDeleteImport removes an import and its row results.
func (s *Server) handleDeleteImport(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.service.DeleteImport(ctx, identity(r).OrganizationID, importID(r)); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
