// Package admin provides administrative operations for database management.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ResetTimeout is the maximum duration for database reset operations.
const ResetTimeout = 30 * time.Second

// Execer runs a statement. *pgxpool.Pool and pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ledgerTables are truncated children first.
var ledgerTables = []string{"row_results", "imports"}

// ResetLedger deletes every import and row result.
// This is a destructive operation; ledgerctl asks for confirmation first.
func ResetLedger(ctx context.Context, db Execer) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	for _, table := range ledgerTables {
		if _, err := db.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
		slog.Info("table reset", "table", table)
	}
	return nil
}
