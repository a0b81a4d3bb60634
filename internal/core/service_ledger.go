package core

// service_ledger.go owns the import entity and its status transitions.
//
// The ledger is a recorder: it stamps startedAt/completedAt when a status is
// entered but does not reject out-of-order transitions. Workers direct every
// transition explicitly; there are no internal timers.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// CreateImport registers an uploaded file as a PENDING import with all
// counters at zero. It fails only on invalid input or storage error.
func (s *Service) CreateImport(ctx context.Context, who Identity, in CreateImportInput, fileURL string) (*Import, error) {
	if strings.TrimSpace(who.OrganizationID) == "" {
		return nil, fmt.Errorf("%w: organization is required", ErrInvalidInput)
	}
	if !in.EntityType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntityType, in.EntityType)
	}
	if strings.TrimSpace(in.FileName) == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if in.FileSize < 0 {
		return nil, fmt.Errorf("%w: file size must be non-negative", ErrInvalidInput)
	}

	imp, err := s.store.InsertImport(ctx, Import{
		ID:             uuid.New().String(),
		OrganizationID: who.OrganizationID,
		EntityType:     in.EntityType,
		FileName:       in.FileName,
		FileURL:        fileURL,
		FileSize:       in.FileSize,
		Status:         StatusPending,
		CreatedBy:      who.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("create import: %w", err)
	}

	slog.Info("import created",
		"import_id", imp.ID,
		"organization_id", imp.OrganizationID,
		"entity_type", imp.EntityType,
		"file_name", imp.FileName,
		"created_by", imp.CreatedBy,
		"ip", GetIPAddressFromContext(ctx),
		"user_agent", GetUserAgentFromContext(ctx),
	)
	return imp, nil
}

// ListImports returns a page of the organization's imports, newest first.
func (s *Service) ListImports(ctx context.Context, organizationID string, opts ListImportsOptions) (*ImportPage, error) {
	req := s.page(opts.PageRequest)
	filter := ImportFilter{Status: opts.Status, EntityType: opts.EntityType}

	imports, total, err := s.store.ListImports(ctx, organizationID, filter, req.Limit, req.offset())
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	return newPage(imports, total, req), nil
}

// GetImport returns an import scoped to its organization.
// An import owned by another organization yields ErrNotFound.
func (s *Service) GetImport(ctx context.Context, organizationID, id string) (*Import, error) {
	imp, err := s.store.GetImport(ctx, organizationID, id)
	if err != nil {
		return nil, fmt.Errorf("get import %s: %w", id, err)
	}
	return imp, nil
}

// GetImportWithResults returns an import plus one page of its row results.
func (s *Service) GetImportWithResults(ctx context.Context, organizationID, id string, opts ListRowsOptions) (*ImportWithResults, error) {
	imp, err := s.GetImport(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.ListRowResults(ctx, imp.ID, opts)
	if err != nil {
		return nil, err
	}
	return &ImportWithResults{Import: imp, Results: rows}, nil
}

// UpdateImportStatus applies a sparse patch. Entering VALIDATING or
// PROCESSING stamps startedAt once; entering COMPLETED or FAILED stamps
// completedAt. This is the only path that overwrites counters wholesale.
func (s *Service) UpdateImportStatus(ctx context.Context, id string, patch ImportPatch) (*Import, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var updated *Import
	err := s.store.InTx(ctx, func(tx Store) error {
		current, err := tx.GetImportByID(ctx, id)
		if err != nil {
			return err
		}

		if total, ok := patch.TotalRows.Get(); ok && current.TotalRows != 0 {
			if total != current.TotalRows {
				return fmt.Errorf("%w: import has %d rows, got %d", ErrTotalRowsLocked, current.TotalRows, total)
			}
			patch.TotalRows = None[int]()
		}

		if patch.Empty() {
			updated = current
			return nil
		}

		updated, err = tx.UpdateImport(ctx, id, patch.resolve())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update import %s: %w", id, err)
	}

	if st, ok := patch.Status.Get(); ok {
		slog.Info("import status changed",
			"import_id", id,
			"status", st,
			"processed_rows", updated.ProcessedRows,
			"total_rows", updated.TotalRows,
		)
	}
	return updated, nil
}

// DeleteImport removes an import and, by cascade, all of its row results.
func (s *Service) DeleteImport(ctx context.Context, organizationID, id string) error {
	if err := s.store.DeleteImport(ctx, organizationID, id); err != nil {
		return fmt.Errorf("delete import %s: %w", id, err)
	}
	slog.Info("import deleted",
		"import_id", id,
		"organization_id", organizationID,
		"ip", GetIPAddressFromContext(ctx),
	)
	return nil
}
