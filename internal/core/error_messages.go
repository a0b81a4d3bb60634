package core

// error_messages.go maps technical errors to messages safe to show to API
// clients, each with a code support staff can look up.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Import not found (or owned by another organization)
//	IMP002 - Dispatch failed: the worker queue rejected the job
//	IMP003 - Total rows already set and cannot change
//
// # Row Errors (ROW001-ROW099)
//
//	ROW001 - Row results already created for this import
//	ROW002 - Row count does not match the import's total rows
//	ROW003 - Duplicate row number in a batch
//	ROW004 - Row numbers start at 1
//	ROW005 - Row status must be a final outcome
//	ROW006 - Row not found in this import
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Unknown entity type
//	VAL002 - Unknown import status
//	VAL003 - Invalid import update
//	VAL004 - Missing or invalid import field
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB002 - Foreign key violation
//	DB003 - Connection refused
//	DB004 - Connection reset
//	DB005 - Deadlock
//
// # Request Errors (REQ001-REQ099), Streams (STR001), Rate Limiting (RATE001)
//
//	REQ001 - Request cancelled
//	REQ002 - Request timed out
//	STR001 - Too many open progress streams
//	RATE001 - Too many requests
//
// Anything else maps to ERR000. Patterns are matched case-insensitively
// against the full error chain text, first match wins.

import (
	"fmt"
	"strings"
)

// UserMessage is a client-facing description of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Ledger errors come first: their messages are wrapped by callers and
	// may carry database text further down the chain.
	{"import not found", UserMessage{"Import not found", "Check the import id and organization", "IMP001"}},
	{"dispatch failed", UserMessage{"The import could not be queued for processing", "Start a new import later", "IMP002"}},
	{"total rows already set", UserMessage{"Total rows is already set for this import", "Send the same totalRows or omit it", "IMP003"}},

	{"row results already created", UserMessage{"Row results already exist for this import", "Update rows individually instead", "ROW001"}},
	{"row count mismatch", UserMessage{"Row count does not match the import's total rows", "Send exactly one row per file row", "ROW002"}},
	{"duplicate row number", UserMessage{"A row number appears more than once", "Number each file row once", "ROW003"}},
	{"invalid row number", UserMessage{"Row numbers must start at 1", "Use 1-based row numbers", "ROW004"}},
	{"row result not found", UserMessage{"Row not found in this import", "Check the row number against the created rows", "ROW006"}},
	{"invalid row status", UserMessage{"Invalid row status", "Use SUCCESS, WARNING, ERROR or SKIPPED", "ROW005"}},

	{"invalid entity type", UserMessage{"Unknown entity type", "Use CLIENT or TRANSACTION", "VAL001"}},
	{"invalid import status", UserMessage{"Unknown import status", "Use PENDING, VALIDATING, PROCESSING, COMPLETED or FAILED", "VAL002"}},
	{"invalid import update", UserMessage{"Invalid import update", "Counters must be non-negative", "VAL003"}},
	{"invalid import input", UserMessage{"Missing or invalid import field", "Provide fileName and a non-negative fileSize", "VAL004"}},

	{"too many progress streams", UserMessage{"Too many progress streams are open", "Poll the progress endpoint instead or retry shortly", "STR001"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},

	{"duplicate key", UserMessage{"A record with this ID already exists", "Retry with a new request", "DB001"}},
	{"violates foreign key", UserMessage{"Referenced import does not exist", "Create the import first", "DB002"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB003"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB004"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB005"}},

	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "REQ001"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Please try again later", "REQ002"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError returns the client-facing message for err.
// A nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "message (Code: X). action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its client-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. It returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
