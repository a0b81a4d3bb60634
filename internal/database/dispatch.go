package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/importledger/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultDispatchChannel is the NOTIFY channel job descriptors are sent on.
const DefaultDispatchChannel = "import_jobs"

// NotifyDispatcher publishes job descriptors with pg_notify. Workers LISTEN
// on the channel; a notification sent inside a rolled back transaction is
// never delivered.
type NotifyDispatcher struct {
	db      DBTX
	channel string
}

var _ core.Dispatcher = (*NotifyDispatcher)(nil)

// NewNotifyDispatcher publishes on channel, or DefaultDispatchChannel.
func NewNotifyDispatcher(pool *pgxpool.Pool, channel string) *NotifyDispatcher {
	if channel == "" {
		channel = DefaultDispatchChannel
	}
	return &NotifyDispatcher{db: pool, channel: channel}
}

// Dispatch sends job as a JSON payload.
func (d *NotifyDispatcher) Dispatch(ctx context.Context, job core.JobDescriptor) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job descriptor: %w", err)
	}
	if _, err := d.db.Exec(ctx, "SELECT pg_notify($1, $2)", d.channel, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w", d.channel, err)
	}
	slog.Debug("job descriptor published", "channel", d.channel, "import_id", job.ImportID)
	return nil
}

// ListenJobs receives job descriptors on channel until ctx ends, calling fn
// for each. Malformed payloads are logged and skipped.
func ListenJobs(ctx context.Context, pool *pgxpool.Pool, channel string, fn func(core.JobDescriptor) error) error {
	if channel == "" {
		channel = DefaultDispatchChannel
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}

		var job core.JobDescriptor
		if err := json.Unmarshal([]byte(n.Payload), &job); err != nil {
			slog.Warn("skipping malformed job descriptor", "channel", channel, "error", err)
			continue
		}
		if err := fn(job); err != nil {
			return err
		}
	}
}
