package core

import (
	"context"
	"time"
)

// ImportFilter narrows an import listing by equality.
type ImportFilter struct {
	Status     Optional[ImportStatus]
	EntityType Optional[EntityType]
}

// RowFilter narrows a row listing by equality.
type RowFilter struct {
	Status Optional[RowStatus]
}

// Store is the persistence contract behind the ledger. Implementations must
// apply IncrementCounts as an additive update at the storage layer and must
// return the previous row status from UpdateRowResult in the same atomic step.
type Store interface {
	// Now returns the store clock. Row and import timestamps are stamped
	// with this clock, so progress cursors must be captured from it.
	Now(ctx context.Context) (time.Time, error)

	// InTx runs fn against a store bound to a single transaction.
	InTx(ctx context.Context, fn func(Store) error) error

	InsertImport(ctx context.Context, imp Import) (*Import, error)
	// GetImport returns ErrNotFound when the import is absent or belongs to
	// another organization.
	GetImport(ctx context.Context, organizationID, id string) (*Import, error)
	// GetImportByID is the unscoped lookup used by worker callbacks.
	GetImportByID(ctx context.Context, id string) (*Import, error)
	ListImports(ctx context.Context, organizationID string, filter ImportFilter, limit, offset int) ([]Import, int64, error)
	UpdateImport(ctx context.Context, id string, upd ImportUpdate) (*Import, error)
	DeleteImport(ctx context.Context, organizationID, id string) error
	// PurgeImports deletes up to limit terminal imports completed before the
	// given time and returns how many were removed.
	PurgeImports(ctx context.Context, completedBefore time.Time, limit int) (int64, error)

	// LockImport takes the import's row lock for the rest of the
	// transaction. A missing import is not an error.
	LockImport(ctx context.Context, importID string) error
	IncrementCounts(ctx context.Context, importID string, delta CounterDelta) error

	InsertRowResults(ctx context.Context, rows []RowResult) error
	CountRowResults(ctx context.Context, importID string) (int64, error)
	// UpdateRowResult returns (nil, "", nil) when no such row exists.
	UpdateRowResult(ctx context.Context, importID string, rowNumber int, outcome RowOutcome) (*RowResult, RowStatus, error)
	ListRowResults(ctx context.Context, importID string, filter RowFilter, limit, offset int) ([]RowResult, int64, error)
	RowResultsUpdatedSince(ctx context.Context, importID string, since time.Time) ([]RowResult, error)
}
