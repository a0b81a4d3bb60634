package core

import "fmt"

// ImportPatch is a sparse update to an import. Only supplied fields change.
type ImportPatch struct {
	Status        Optional[ImportStatus] `json:"status"`
	TotalRows     Optional[int]          `json:"totalRows"`
	ProcessedRows Optional[int]          `json:"processedRows"`
	SuccessCount  Optional[int]          `json:"successCount"`
	WarningCount  Optional[int]          `json:"warningCount"`
	ErrorCount    Optional[int]          `json:"errorCount"`
	ErrorMessage  Optional[string]       `json:"errorMessage"`
}

// Empty reports whether no field was supplied.
func (p ImportPatch) Empty() bool {
	return !p.Status.IsSet() &&
		!p.TotalRows.IsSet() &&
		!p.ProcessedRows.IsSet() &&
		!p.SuccessCount.IsSet() &&
		!p.WarningCount.IsSet() &&
		!p.ErrorCount.IsSet() &&
		!p.ErrorMessage.IsSet()
}

// Validate rejects negative counters and unknown statuses.
func (p ImportPatch) Validate() error {
	if st, ok := p.Status.Get(); ok && !st.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, st)
	}
	for name, field := range map[string]Optional[int]{
		"totalRows":     p.TotalRows,
		"processedRows": p.ProcessedRows,
		"successCount":  p.SuccessCount,
		"warningCount":  p.WarningCount,
		"errorCount":    p.ErrorCount,
	} {
		if v, ok := field.Get(); ok && v < 0 {
			return fmt.Errorf("%w: %s must be non-negative, got %d", ErrInvalidPatch, name, v)
		}
	}
	return nil
}

// ImportUpdate is the resolved write a Store applies to an import row.
// Timestamps are taken from the store's clock so that every instance agrees
// with the row timestamps used by progress polling.
type ImportUpdate struct {
	ImportPatch

	// MarkStarted sets startedAt if it is not already set.
	MarkStarted bool
	// MarkCompleted sets completedAt.
	MarkCompleted bool
}

// resolve turns a validated patch into the update applied by the store.
func (p ImportPatch) resolve() ImportUpdate {
	upd := ImportUpdate{ImportPatch: p}
	if st, ok := p.Status.Get(); ok {
		upd.MarkStarted = st.stampsStart()
		upd.MarkCompleted = st.Terminal()
	}
	return upd
}
