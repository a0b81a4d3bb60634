package core

// service_rows.go implements the row result store operations.
//
// Row numbers are supplied by the caller in file order and are never
// resequenced. Updates are keyed by (importID, rowNumber), so concurrent
// completions of different rows never conflict.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// CreateRowResults registers every row of a validated file in PENDING state.
// When the import already has a non-zero totalRows the batch size must match
// it. Rows can be created once per import.
func (s *Service) CreateRowResults(ctx context.Context, importID string, rows []NewRow) error {
	seen := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		if r.RowNumber < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidRowNumber, r.RowNumber)
		}
		if _, dup := seen[r.RowNumber]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateRowNumber, r.RowNumber)
		}
		seen[r.RowNumber] = struct{}{}
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		imp, err := tx.GetImportByID(ctx, importID)
		if err != nil {
			return err
		}
		if imp.TotalRows != 0 && imp.TotalRows != len(rows) {
			return fmt.Errorf("%w: import expects %d rows, got %d", ErrRowCountMismatch, imp.TotalRows, len(rows))
		}

		existing, err := tx.CountRowResults(ctx, importID)
		if err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: %d rows exist", ErrRowsAlreadyCreated, existing)
		}

		if len(rows) == 0 {
			return nil
		}

		records := make([]RowResult, len(rows))
		for i, r := range rows {
			records[i] = RowResult{
				ID:        uuid.New().String(),
				ImportID:  importID,
				RowNumber: r.RowNumber,
				Status:    RowPending,
				RawData:   r.RawData,
			}
		}
		return tx.InsertRowResults(ctx, records)
	})
	if err != nil {
		return fmt.Errorf("create row results for %s: %w", importID, err)
	}

	slog.Info("row results created", "import_id", importID, "rows", len(rows))
	return nil
}

// UpdateRowResult records a row's terminal outcome and applies the matching
// counter delta. It returns (nil, nil) when the import has no such row, so
// callers can tell "nothing to update" from a failure.
func (s *Service) UpdateRowResult(ctx context.Context, importID string, rowNumber int, outcome RowOutcome) (*RowResult, error) {
	if !outcome.Status.Terminal() {
		return nil, fmt.Errorf("%w: %q is not a terminal row status", ErrInvalidRowStatus, outcome.Status)
	}
	if rowNumber < 1 {
		return nil, nil
	}

	var row *RowResult
	err := s.store.InTx(ctx, func(tx Store) error {
		// Concurrent workers queue on the import row. Taking that lock
		// before the row is stamped keeps updatedAt close to the commit,
		// which is what progress cursors compare against.
		if err := tx.LockImport(ctx, importID); err != nil {
			return err
		}
		updated, prev, err := tx.UpdateRowResult(ctx, importID, rowNumber, outcome)
		if err != nil || updated == nil {
			return err
		}
		row = updated

		delta := rowTransitionDelta(prev, outcome.Status)
		if delta.IsZero() {
			return nil
		}
		return tx.IncrementCounts(ctx, importID, delta)
	})
	if err != nil {
		return nil, fmt.Errorf("update row %d of %s: %w", rowNumber, importID, err)
	}
	return row, nil
}

// ListRowResults returns a page of rows ordered by row number.
func (s *Service) ListRowResults(ctx context.Context, importID string, opts ListRowsOptions) (*RowPage, error) {
	req := s.page(opts.PageRequest)

	rows, total, err := s.store.ListRowResults(ctx, importID, RowFilter{Status: opts.Status}, req.Limit, req.offset())
	if err != nil {
		return nil, fmt.Errorf("list row results for %s: %w", importID, err)
	}
	return newPage(rows, total, req), nil
}

// GetRecentRowUpdates returns rows whose updatedAt is strictly after since,
// ordered by row number.
func (s *Service) GetRecentRowUpdates(ctx context.Context, importID string, since time.Time) ([]RowResult, error) {
	rows, err := s.store.RowResultsUpdatedSince(ctx, importID, since)
	if err != nil {
		return nil, fmt.Errorf("recent row updates for %s: %w", importID, err)
	}
	if rows == nil {
		rows = []RowResult{}
	}
	return rows, nil
}
