package core

// service_counters.go implements the counter aggregator.
//
// Import totals are never recomputed from row records. Each finalized row
// applies an additive delta at the storage layer, so concurrent workers
// completing different rows of the same import cannot lose increments.

import (
	"context"
	"fmt"
)

// CounterDelta is a set of increments applied to an import's counters.
type CounterDelta struct {
	ProcessedRows int `json:"processedRows"`
	SuccessCount  int `json:"successCount"`
	WarningCount  int `json:"warningCount"`
	ErrorCount    int `json:"errorCount"`
}

// IsZero reports whether applying d would change nothing.
func (d CounterDelta) IsZero() bool {
	return d == CounterDelta{}
}

// negative reports whether any component would decrease a counter.
func (d CounterDelta) negative() bool {
	return d.ProcessedRows < 0 || d.SuccessCount < 0 || d.WarningCount < 0 || d.ErrorCount < 0
}

// addBucket adds n to the outcome bucket for status.
// ERROR and SKIPPED share the error bucket.
func (d *CounterDelta) addBucket(status RowStatus, n int) {
	switch status {
	case RowSuccess:
		d.SuccessCount += n
	case RowWarning:
		d.WarningCount += n
	case RowError, RowSkipped:
		d.ErrorCount += n
	}
}

// sameBucket reports whether two row statuses count towards the same bucket.
func sameBucket(a, b RowStatus) bool {
	var da, db CounterDelta
	da.addBucket(a, 1)
	db.addBucket(b, 1)
	return da == db
}

// rowTransitionDelta is the counter change caused by moving a row from prev
// to next. A first finalization counts the row as processed; re-finalizing
// into a different bucket moves one count between buckets.
func rowTransitionDelta(prev, next RowStatus) CounterDelta {
	var d CounterDelta
	switch {
	case !prev.Terminal():
		d.ProcessedRows = 1
		d.addBucket(next, 1)
	case sameBucket(prev, next):
	default:
		d.addBucket(prev, -1)
		d.addBucket(next, 1)
	}
	return d
}

// IncrementCounts applies caller-supplied deltas atomically. Deltas must be
// non-negative: counters only grow until the import is terminal.
func (s *Service) IncrementCounts(ctx context.Context, importID string, delta CounterDelta) error {
	if delta.negative() {
		return fmt.Errorf("%w: counter deltas must be non-negative", ErrInvalidPatch)
	}
	if delta.IsZero() {
		return nil
	}
	if err := s.store.IncrementCounts(ctx, importID, delta); err != nil {
		return fmt.Errorf("increment counts for %s: %w", importID, err)
	}
	return nil
}
