package core

import (
	"fmt"
	"strings"
	"time"
)

// EntityType is the kind of domain record an import produces.
type EntityType string

const (
	EntityClient      EntityType = "CLIENT"
	EntityTransaction EntityType = "TRANSACTION"
)

// ParseEntityType maps a storage or request value to an EntityType.
// Unknown values are rejected with ErrInvalidEntityType.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(strings.ToUpper(strings.TrimSpace(s))) {
	case EntityClient:
		return EntityClient, nil
	case EntityTransaction:
		return EntityTransaction, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntityType, s)
}

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	return t == EntityClient || t == EntityTransaction
}

func (t EntityType) String() string { return string(t) }

// UnmarshalText implements encoding.TextUnmarshaler so request bodies are
// validated while decoding.
func (t *EntityType) UnmarshalText(b []byte) error {
	v, err := ParseEntityType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ImportStatus is the lifecycle state of an import job.
type ImportStatus string

const (
	StatusPending    ImportStatus = "PENDING"
	StatusValidating ImportStatus = "VALIDATING"
	StatusProcessing ImportStatus = "PROCESSING"
	StatusCompleted  ImportStatus = "COMPLETED"
	StatusFailed     ImportStatus = "FAILED"
)

// ParseImportStatus maps a storage or request value to an ImportStatus.
func ParseImportStatus(s string) (ImportStatus, error) {
	switch ImportStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusValidating:
		return StatusValidating, nil
	case StatusProcessing:
		return StatusProcessing, nil
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusFailed:
		return StatusFailed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Valid reports whether s is one of the known statuses.
func (s ImportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusValidating, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are expected.
func (s ImportStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// stampsStart reports whether entering s records startedAt.
func (s ImportStatus) stampsStart() bool {
	return s == StatusValidating || s == StatusProcessing
}

func (s ImportStatus) String() string { return string(s) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ImportStatus) UnmarshalText(b []byte) error {
	v, err := ParseImportStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// RowStatus is the disposition of a single row.
type RowStatus string

const (
	RowPending RowStatus = "PENDING"
	RowSuccess RowStatus = "SUCCESS"
	RowWarning RowStatus = "WARNING"
	RowError   RowStatus = "ERROR"
	RowSkipped RowStatus = "SKIPPED"
)

// ParseRowStatus maps a storage or request value to a RowStatus.
func ParseRowStatus(s string) (RowStatus, error) {
	switch RowStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case RowPending:
		return RowPending, nil
	case RowSuccess:
		return RowSuccess, nil
	case RowWarning:
		return RowWarning, nil
	case RowError:
		return RowError, nil
	case RowSkipped:
		return RowSkipped, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRowStatus, s)
}

// Terminal reports whether the row has been finalized by a worker.
func (s RowStatus) Terminal() bool {
	switch s {
	case RowSuccess, RowWarning, RowError, RowSkipped:
		return true
	}
	return false
}

func (s RowStatus) String() string { return string(s) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *RowStatus) UnmarshalText(b []byte) error {
	v, err := ParseRowStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Import is a tracked bulk-upload job targeting one entity kind.
type Import struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organizationId"`
	EntityType     EntityType   `json:"entityType"`
	FileName       string       `json:"fileName"`
	FileURL        string       `json:"fileUrl"`
	FileSize       int64        `json:"fileSize"`
	Status         ImportStatus `json:"status"`
	TotalRows      int          `json:"totalRows"`
	ProcessedRows  int          `json:"processedRows"`
	SuccessCount   int          `json:"successCount"`
	WarningCount   int          `json:"warningCount"`
	ErrorCount     int          `json:"errorCount"`
	ErrorMessage   *string      `json:"errorMessage"`
	CreatedBy      string       `json:"createdBy"`
	StartedAt      *time.Time   `json:"startedAt"`
	CompletedAt    *time.Time   `json:"completedAt"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// Percent returns the processing progress as a percentage (0-100).
// Returns 0 until the row count is known.
func (i Import) Percent() int {
	if i.TotalRows <= 0 {
		return 0
	}
	p := (i.ProcessedRows * 100) / i.TotalRows
	if p > 100 {
		return 100
	}
	return p
}

// Balanced reports whether processedRows equals the sum of the outcome buckets.
func (i Import) Balanced() bool {
	return i.ProcessedRows == i.SuccessCount+i.WarningCount+i.ErrorCount
}

// RowResult is the per-row outcome record belonging to an Import.
type RowResult struct {
	ID        string          `json:"id"`
	ImportID  string          `json:"importId"`
	RowNumber int             `json:"rowNumber"`
	Status    RowStatus       `json:"status"`
	RawData   string          `json:"rawData"`
	EntityID  *string         `json:"entityId"`
	Message   *string         `json:"message"`
	Errors    []string        `json:"errors"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CreateImportInput is the caller-supplied description of an uploaded file.
type CreateImportInput struct {
	EntityType EntityType `json:"entityType"`
	FileName   string     `json:"fileName"`
	FileSize   int64      `json:"fileSize"`
}

// NewRow is a placeholder row registered once the file has been validated.
type NewRow struct {
	RowNumber int    `json:"rowNumber"`
	RawData   string `json:"rawData"`
}

// RowOutcome is the terminal disposition a worker records for one row.
type RowOutcome struct {
	Status   RowStatus        `json:"status"`
	EntityID Optional[string] `json:"entityId"`
	Message  Optional[string] `json:"message"`
	Errors   []string         `json:"errors"`
}

// FinalCounts is the reconciliation a worker sends when it completes.
type FinalCounts struct {
	SuccessCount int `json:"successCount"`
	WarningCount int `json:"warningCount"`
	ErrorCount   int `json:"errorCount"`
}

// Identity identifies the caller of an organization-scoped operation.
type Identity struct {
	OrganizationID string
	UserID         string
}
