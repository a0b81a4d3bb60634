package core

// service_progress.go implements the progress cursor.
//
// Polling is pull-based and stateless. A caller keeps the Cursor returned by
// the previous poll and passes it as since on the next one. The cursor is
// captured from the store clock before any row is read, so a row updated
// while the query runs is returned again on the next poll rather than lost.

import (
	"context"
	"fmt"
	"time"
)

// ProgressSnapshot is the result of one progress poll.
type ProgressSnapshot struct {
	Import *Import     `json:"import"`
	Rows   []RowResult `json:"rows"`
	Cursor time.Time   `json:"cursor"`
}

// PollProgress returns the import and every row changed after since.
// Repeating a poll with the same since is safe.
func (s *Service) PollProgress(ctx context.Context, organizationID, importID string, since time.Time) (*ProgressSnapshot, error) {
	cursor, err := s.store.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("progress cursor: %w", err)
	}

	imp, err := s.GetImport(ctx, organizationID, importID)
	if err != nil {
		return nil, err
	}

	rows, err := s.GetRecentRowUpdates(ctx, importID, since)
	if err != nil {
		return nil, err
	}

	return &ProgressSnapshot{Import: imp, Rows: rows, Cursor: cursor}, nil
}

// ProgressEventType names a live progress event.
type ProgressEventType string

const (
	EventConnected    ProgressEventType = "connected"
	EventRowUpdate    ProgressEventType = "row_update"
	EventStatusChange ProgressEventType = "status_change"
	EventCompleted    ProgressEventType = "completed"
	EventError        ProgressEventType = "error"
	EventPing         ProgressEventType = "ping"
)

// ProgressEvent is one message of a live progress stream.
type ProgressEvent struct {
	Type      ProgressEventType `json:"type"`
	Data      any               `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
}

// ImportProgress is the compact import view carried by status events.
type ImportProgress struct {
	ImportID      string       `json:"importId"`
	Status        ImportStatus `json:"status"`
	TotalRows     int          `json:"totalRows"`
	ProcessedRows int          `json:"processedRows"`
	SuccessCount  int          `json:"successCount"`
	WarningCount  int          `json:"warningCount"`
	ErrorCount    int          `json:"errorCount"`
	Percent       int          `json:"percent"`
	ErrorMessage  *string      `json:"errorMessage,omitempty"`
}

// ProgressOf summarizes an import for progress events.
func ProgressOf(imp *Import) ImportProgress {
	return ImportProgress{
		ImportID:      imp.ID,
		Status:        imp.Status,
		TotalRows:     imp.TotalRows,
		ProcessedRows: imp.ProcessedRows,
		SuccessCount:  imp.SuccessCount,
		WarningCount:  imp.WarningCount,
		ErrorCount:    imp.ErrorCount,
		Percent:       imp.Percent(),
		ErrorMessage:  imp.ErrorMessage,
	}
}

// ProgressTracker turns consecutive snapshots into progress events.
// It holds the client's cursor between polls; it is not safe for
// concurrent use.
type ProgressTracker struct {
	cursor     time.Time
	lastStatus ImportStatus
	lastCounts ImportProgress
	done       bool
}

// NewProgressTracker starts tracking from since.
func NewProgressTracker(since time.Time) *ProgressTracker {
	return &ProgressTracker{cursor: since}
}

// Cursor returns the since value for the next poll.
func (t *ProgressTracker) Cursor() time.Time {
	return t.cursor
}

// Done reports whether a terminal event has been emitted.
func (t *ProgressTracker) Done() bool {
	return t.done
}

// Observe advances the cursor and returns the events implied by snap.
func (t *ProgressTracker) Observe(snap *ProgressSnapshot, at time.Time) []ProgressEvent {
	var events []ProgressEvent
	t.cursor = snap.Cursor

	for _, row := range snap.Rows {
		events = append(events, ProgressEvent{Type: EventRowUpdate, Data: row, Timestamp: at})
	}

	progress := ProgressOf(snap.Import)
	if snap.Import.Status != t.lastStatus || (len(snap.Rows) > 0 && progress != t.lastCounts) {
		events = append(events, ProgressEvent{Type: EventStatusChange, Data: progress, Timestamp: at})
	}
	t.lastStatus = snap.Import.Status
	t.lastCounts = progress

	switch snap.Import.Status {
	case StatusCompleted:
		events = append(events, ProgressEvent{Type: EventCompleted, Data: progress, Timestamp: at})
		t.done = true
	case StatusFailed:
		events = append(events, ProgressEvent{Type: EventError, Data: progress, Timestamp: at})
		t.done = true
	}
	return events
}

// NewProgressEvent builds an event stamped with the service clock.
func (s *Service) NewProgressEvent(typ ProgressEventType, data any) ProgressEvent {
	return ProgressEvent{Type: typ, Data: data, Timestamp: s.now()}
}
