package core

// dispatch.go is the boundary between the ledger and the external worker
// queue. The descriptor below is the entire contract a worker receives: it
// fetches the file itself and calls back through the worker callbacks.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// JobDescriptor is handed to the worker queue when an import is created.
type JobDescriptor struct {
	ImportID       string     `json:"importId"`
	OrganizationID string     `json:"organizationId"`
	EntityType     EntityType `json:"entityType"`
	FileURL        string     `json:"fileUrl"`
	CreatedBy      string     `json:"createdBy"`
}

// DescriptorFor builds the job descriptor for an import.
func DescriptorFor(imp *Import) JobDescriptor {
	return JobDescriptor{
		ImportID:       imp.ID,
		OrganizationID: imp.OrganizationID,
		EntityType:     imp.EntityType,
		FileURL:        imp.FileURL,
		CreatedBy:      imp.CreatedBy,
	}
}

// Dispatcher hands job descriptors to an external queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, job JobDescriptor) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, job JobDescriptor) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, job JobDescriptor) error {
	return f(ctx, job)
}

// LogDispatcher only logs descriptors. It is used when no queue is wired,
// e.g. with the in-memory store.
type LogDispatcher struct{}

// Dispatch logs the descriptor.
func (LogDispatcher) Dispatch(ctx context.Context, job JobDescriptor) error {
	slog.Info("import job dispatched",
		"import_id", job.ImportID,
		"organization_id", job.OrganizationID,
		"entity_type", job.EntityType,
		"file_url", job.FileURL,
	)
	return nil
}

// StartImport creates an import and hands its descriptor to the dispatcher.
// If dispatch fails the import is marked FAILED and the returned error wraps
// ErrDispatch; the import is still returned so callers can report its id.
func (s *Service) StartImport(ctx context.Context, who Identity, in CreateImportInput, fileURL string) (*Import, error) {
	imp, err := s.CreateImport(ctx, who, in, fileURL)
	if err != nil {
		return nil, err
	}

	dispatchErr := s.dispatcher.Dispatch(ctx, DescriptorFor(imp))
	if dispatchErr == nil {
		return imp, nil
	}

	slog.Error("import dispatch failed", "import_id", imp.ID, "error", dispatchErr)
	failed, err := s.Fail(ctx, imp.ID, fmt.Sprintf("%v: %v", ErrDispatch, dispatchErr))
	if err != nil {
		return imp, errors.Join(fmt.Errorf("%w: %w", ErrDispatch, dispatchErr), err)
	}
	return failed, fmt.Errorf("%w: %w", ErrDispatch, dispatchErr)
}
