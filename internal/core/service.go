package core

import (
	"errors"
	"time"
)

// Options tunes a Service. Zero values fall back to package defaults.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int

	// MaxStreams bounds concurrent live progress streams.
	MaxStreams int
	// StreamWait is how long a new stream waits for a free slot.
	StreamWait time.Duration
}

// Service provides the core business logic for import tracking.
//
// It combines the import ledger, the row result store, the counter
// aggregator, the progress cursor and the dispatch boundary. Every method
// is a bounded number of store round trips; the Service keeps no per-import
// state in memory.
type Service struct {
	store      Store
	dispatcher Dispatcher
	streams    *StreamLimiter
	opts       Options

	// now stamps progress events and retention cutoffs; row timestamps
	// come from Store.Now.
	now func() time.Time
}

// NewService creates a new Service instance.
// A nil dispatcher falls back to a LogDispatcher.
func NewService(store Store, dispatcher Dispatcher, opts Options) (*Service, error) {
	if store == nil {
		return nil, errors.New("core: store is required")
	}
	if dispatcher == nil {
		dispatcher = LogDispatcher{}
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = MaxPageSize
	}
	if opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = opts.MaxPageSize
	}

	return &Service{
		store:      store,
		dispatcher: dispatcher,
		streams:    NewStreamLimiter(opts.MaxStreams, opts.StreamWait),
		opts:       opts,
		now:        time.Now,
	}, nil
}

// Store returns the underlying store.
func (s *Service) Store() Store {
	return s.store
}

// page normalizes a page request with the service limits.
func (s *Service) page(req PageRequest) PageRequest {
	return req.normalize(s.opts.DefaultPageSize, s.opts.MaxPageSize)
}
