package core

// stream_limiter.go bounds the number of live progress streams.
//
// Each open stream polls the store on an interval, so the limiter is what
// keeps a burst of dashboards from turning into a burst of queries. Slots are
// a buffered channel; a caller that cannot get one within maxWait receives
// ErrTooManyStreams. Shutdown uses WaitForDrain to let open streams notice
// their cancelled request contexts and exit.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyStreams is returned when every stream slot stays taken for the
// whole wait window.
var ErrTooManyStreams = errors.New("too many progress streams, please try again later")

const (
	// DefaultMaxStreams is the stream limit used when none is configured.
	DefaultMaxStreams = 100

	// DefaultStreamWait is how long Acquire waits for a free slot.
	DefaultStreamWait = 5 * time.Second
)

// StreamLimiter is a counting semaphore for progress streams.
type StreamLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewStreamLimiter allows at most maxStreams concurrent streams.
func NewStreamLimiter(maxStreams int, maxWait time.Duration) *StreamLimiter {
	if maxStreams <= 0 {
		maxStreams = DefaultMaxStreams
	}
	if maxWait <= 0 {
		maxWait = DefaultStreamWait
	}
	return &StreamLimiter{
		slots:   make(chan struct{}, maxStreams),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting up to the limiter's wait window.
// Every successful Acquire must be paired with Release.
func (l *StreamLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-timer.C:
		return ErrTooManyStreams
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *StreamLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *StreamLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of open streams.
func (l *StreamLimiter) Active() int {
	return int(l.active.Load())
}

// WaitForDrain blocks until no stream is open or ctx ends.
func (l *StreamLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// StreamLimiterStatus is a snapshot for the health endpoint.
type StreamLimiterStatus struct {
	Active    int `json:"active"`
	Available int `json:"available"`
	Max       int `json:"max"`
}

// Status returns the limiter's current occupancy.
func (l *StreamLimiter) Status() StreamLimiterStatus {
	return StreamLimiterStatus{
		Active:    l.Active(),
		Available: cap(l.slots) - len(l.slots),
		Max:       cap(l.slots),
	}
}

// AcquireStream takes a progress stream slot.
func (s *Service) AcquireStream(ctx context.Context) error {
	return s.streams.Acquire(ctx)
}

// ReleaseStream frees a progress stream slot.
func (s *Service) ReleaseStream() {
	s.streams.Release()
}

// StreamStatus reports progress stream occupancy.
func (s *Service) StreamStatus() StreamLimiterStatus {
	return s.streams.Status()
}

// WaitForStreams blocks until every progress stream has closed.
func (s *Service) WaitForStreams(ctx context.Context) error {
	return s.streams.WaitForDrain(ctx)
}
