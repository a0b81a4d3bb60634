package core

// service_worker.go holds the callbacks an external worker uses to drive an
// import through its lifecycle:
//
//	StartValidation(totalRows) -> CreateRowResults -> StartProcessing
//	  -> UpdateRowResult per row -> Complete(counts) | Fail(message)
//
// Each callback is a thin composition of UpdateImportStatus.

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// StartValidation moves the import to VALIDATING and records its row count.
func (s *Service) StartValidation(ctx context.Context, importID string, totalRows int) (*Import, error) {
	if totalRows < 0 {
		return nil, fmt.Errorf("%w: totalRows must be non-negative, got %d", ErrInvalidPatch, totalRows)
	}
	return s.UpdateImportStatus(ctx, importID, ImportPatch{
		Status:    Some(StatusValidating),
		TotalRows: Some(totalRows),
	})
}

// StartProcessing moves the import to PROCESSING.
func (s *Service) StartProcessing(ctx context.Context, importID string) (*Import, error) {
	return s.UpdateImportStatus(ctx, importID, ImportPatch{
		Status: Some(StatusProcessing),
	})
}

// Complete marks the import COMPLETED and overwrites its counters with the
// worker's final reconciliation. processedRows becomes the bucket sum.
func (s *Service) Complete(ctx context.Context, importID string, counts FinalCounts) (*Import, error) {
	return s.UpdateImportStatus(ctx, importID, ImportPatch{
		Status:        Some(StatusCompleted),
		ProcessedRows: Some(counts.SuccessCount + counts.WarningCount + counts.ErrorCount),
		SuccessCount:  Some(counts.SuccessCount),
		WarningCount:  Some(counts.WarningCount),
		ErrorCount:    Some(counts.ErrorCount),
	})
}

// Fail marks the import FAILED with a reason.
func (s *Service) Fail(ctx context.Context, importID string, message string) (*Import, error) {
	return s.UpdateImportStatus(ctx, importID, ImportPatch{
		Status:       Some(StatusFailed),
		ErrorMessage: Some(truncateReason(message)),
	})
}

// truncateReason bounds error messages stored on an import to maxLen bytes
// without splitting a UTF-8 sequence.
func truncateReason(reason string) string {
	const maxLen = 1000
	reason = strings.TrimSpace(reason)
	if len(reason) <= maxLen {
		return reason
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
