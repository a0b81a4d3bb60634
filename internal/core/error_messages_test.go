package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name: "nil error returns empty",
			err:  nil,
		},
		{
			name:        "not found",
			err:         fmt.Errorf("get import abc: %w", ErrNotFound),
			wantCode:    "IMP001",
			wantMessage: "Import not found",
		},
		{
			name:        "dispatch failure",
			err:         fmt.Errorf("%w: queue unavailable", ErrDispatch),
			wantCode:    "IMP002",
			wantMessage: "The import could not be queued for processing",
		},
		{
			name:        "row count mismatch",
			err:         fmt.Errorf("create row results for x: %w: import expects 3 rows, got 2", ErrRowCountMismatch),
			wantCode:    "ROW002",
			wantMessage: "Row count does not match the import's total rows",
		},
		{
			name:        "missing row",
			err:         fmt.Errorf("%w: row 7 of x", ErrRowNotFound),
			wantCode:    "ROW006",
			wantMessage: "Row not found in this import",
		},
		{
			name:        "ledger error wins over database text",
			err:         fmt.Errorf("%w: duplicate key value", ErrRowsAlreadyCreated),
			wantCode:    "ROW001",
			wantMessage: "Row results already exist for this import",
		},
		{
			name:        "invalid entity type",
			err:         fmt.Errorf("%w: %q", ErrInvalidEntityType, "VENDOR"),
			wantCode:    "VAL001",
			wantMessage: "Unknown entity type",
		},
		{
			name:        "stream limit",
			err:         ErrTooManyStreams,
			wantCode:    "STR001",
			wantMessage: "Too many progress streams are open",
		},
		{
			name:        "connection refused",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB003",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "deadline",
			err:         errors.New("context deadline exceeded"),
			wantCode:    "REQ002",
			wantMessage: "Request timed out",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE KEY value violates"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrNotFound)

	expected := "Import not found (Code: IMP001). Check the import id and organization"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil error is not user facing")
	}
	if !IsUserFacing(ErrTotalRowsLocked) {
		t.Error("known error should be user facing")
	}
	if IsUserFacing(errors.New("random internal error xyz")) {
		t.Error("unknown error should not be user facing")
	}
}

func TestNewUserError(t *testing.T) {
	if got := NewUserError(nil); got != nil {
		t.Errorf("NewUserError(nil) = %v, want nil", got)
	}

	techErr := fmt.Errorf("wrap: %w", ErrInvalidRowStatus)
	userErr := NewUserError(techErr)

	if userErr.Error() != "Invalid row status" {
		t.Errorf("Error() = %q, want user message", userErr.Error())
	}
	if !errors.Is(userErr, ErrInvalidRowStatus) {
		t.Error("Unwrap() should expose the original error")
	}
}
