package web

// handlers_progress.go serves import progress: a stateless poll endpoint, a
// Server-Sent Events stream built on the same poll, and an HTMX status card.

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/importledger/internal/core"
	"github.com/JonMunkholm/importledger/internal/logging"
	"github.com/JonMunkholm/importledger/internal/web/templates"
)

// handleImportProgress returns the import plus the rows changed since the
// caller's cursor. The response cursor is passed back on the next poll.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	snap, err := s.service.PollProgress(r.Context(), identity(r).OrganizationID, importID(r), since)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, snap)
}

// handleImportStatusFragment renders the import status card for HTMX.
func (s *Server) handleImportStatusFragment(w http.ResponseWriter, r *http.Request) {
	imp, err := s.service.GetImport(r.Context(), identity(r).OrganizationID, importID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ImportStatus(core.ProgressOf(imp)).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render status fragment", "error", err)
	}
}

// handleImportEvents streams progress events until the import finishes or
// the client goes away. Each event carries the poll cursor as its id so a
// reconnecting EventSource resumes where it left off.
func (s *Server) handleImportEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := identity(r).OrganizationID
	id := importID(r)

	since, err := parseSince(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	// Resolve the import before taking a stream slot so unknown ids get a
	// plain 404.
	snap, err := s.service.PollProgress(ctx, orgID, id, since)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.service.AcquireStream(ctx); err != nil {
		w.Header().Set("Retry-After", "5")
		s.respondError(w, r, err)
		return
	}
	defer s.service.ReleaseStream()

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	logger := logging.WithFields(ctx, "import_id", id)
	logger.Debug("progress stream opened")
	defer logger.Debug("progress stream closed")

	tracker := core.NewProgressTracker(since)
	send := func(events ...core.ProgressEvent) bool {
		for _, ev := range events {
			if err := writeEvent(w, tracker.Cursor(), ev); err != nil {
				logger.Debug("progress stream write failed", "error", err)
				return false
			}
		}
		flusher.Flush()
		return true
	}

	connected := s.service.NewProgressEvent(core.EventConnected, core.ProgressOf(snap.Import))
	if !send(append([]core.ProgressEvent{connected}, tracker.Observe(snap, time.Now())...)...) || tracker.Done() {
		return
	}

	poll := time.NewTicker(s.cfg.Progress.PollInterval)
	defer poll.Stop()
	ping := time.NewTicker(s.cfg.Progress.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.closing:
			return

		case <-ping.C:
			if !send(s.service.NewProgressEvent(core.EventPing, nil)) {
				return
			}

		case <-poll.C:
			snap, err := s.service.PollProgress(ctx, orgID, id, tracker.Cursor())
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, core.ErrNotFound) {
					// Deleted while streaming.
					send(s.service.NewProgressEvent(core.EventError, core.MapError(err)))
					return
				}
				logger.Warn("progress poll failed", "error", err)
				continue
			}

			events := tracker.Observe(snap, time.Now())
			if len(events) > 0 {
				if !send(events...) {
					return
				}
			}
			if tracker.Done() {
				return
			}
		}
	}
}

// writeEvent writes one SSE frame.
func writeEvent(w http.ResponseWriter, cursor time.Time, ev core.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if !cursor.IsZero() {
		if _, err := fmt.Fprintf(w, "id: %s\n", cursor.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
