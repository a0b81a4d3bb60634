package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/importledger/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const importColumns = `id, organization_id, entity_type, file_name, file_url, file_size,
	status, total_rows, processed_rows, success_count, warning_count, error_count,
	error_message, created_by, started_at, completed_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanImport(row scanner) (*core.Import, error) {
	var (
		imp          core.Import
		id           pgtype.UUID
		entityType   string
		status       string
		errorMessage pgtype.Text
		startedAt    pgtype.Timestamptz
		completedAt  pgtype.Timestamptz
	)
	err := row.Scan(
		&id, &imp.OrganizationID, &entityType, &imp.FileName, &imp.FileURL, &imp.FileSize,
		&status, &imp.TotalRows, &imp.ProcessedRows, &imp.SuccessCount, &imp.WarningCount, &imp.ErrorCount,
		&errorMessage, &imp.CreatedBy, &startedAt, &completedAt, &imp.CreatedAt, &imp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if imp.EntityType, err = core.ParseEntityType(entityType); err != nil {
		return nil, err
	}
	if imp.Status, err = core.ParseImportStatus(status); err != nil {
		return nil, err
	}
	imp.ID = uuidString(id)
	imp.ErrorMessage = textPtr(errorMessage)
	imp.StartedAt = timePtr(startedAt)
	imp.CompletedAt = timePtr(completedAt)
	return &imp, nil
}

// InsertImport stores a new import.
func (s *Store) InsertImport(ctx context.Context, imp core.Import) (*core.Import, error) {
	query := `INSERT INTO imports (
		id, organization_id, entity_type, file_name, file_url, file_size,
		status, total_rows, processed_rows, success_count, warning_count, error_count,
		error_message, created_by
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING ` + importColumns

	row := s.db.QueryRow(ctx, query,
		toPgUUID(imp.ID), imp.OrganizationID, string(imp.EntityType), imp.FileName, imp.FileURL, imp.FileSize,
		string(imp.Status), imp.TotalRows, imp.ProcessedRows, imp.SuccessCount, imp.WarningCount, imp.ErrorCount,
		toPgText(imp.ErrorMessage), imp.CreatedBy,
	)
	created, err := scanImport(row)
	if err != nil {
		return nil, translate(err)
	}
	return created, nil
}

// GetImport returns an organization's import.
func (s *Store) GetImport(ctx context.Context, organizationID, id string) (*core.Import, error) {
	uid := toPgUUID(id)
	if !uid.Valid {
		return nil, core.ErrNotFound
	}
	row := s.db.QueryRow(ctx,
		"SELECT "+importColumns+" FROM imports WHERE id = $1 AND organization_id = $2",
		uid, organizationID)
	imp, err := scanImport(row)
	if err != nil {
		return nil, translate(err)
	}
	return imp, nil
}

// GetImportByID returns an import regardless of organization.
func (s *Store) GetImportByID(ctx context.Context, id string) (*core.Import, error) {
	uid := toPgUUID(id)
	if !uid.Valid {
		return nil, core.ErrNotFound
	}
	imp, err := scanImport(s.db.QueryRow(ctx, "SELECT "+importColumns+" FROM imports WHERE id = $1", uid))
	if err != nil {
		return nil, translate(err)
	}
	return imp, nil
}

// ListImports returns matching imports, newest first.
func (s *Store) ListImports(ctx context.Context, organizationID string, filter core.ImportFilter, limit, offset int) ([]core.Import, int64, error) {
	wb := core.NewWhereBuilder()
	wb.AddOp("organization_id", "=", organizationID)
	if st, ok := filter.Status.Get(); ok {
		wb.Add("status", string(st))
	}
	if et, ok := filter.EntityType.Get(); ok {
		wb.Add("entity_type", string(et))
	}
	whereClause, args := wb.Build()

	var total int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM imports"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, translate(err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	query := "SELECT " + importColumns + " FROM imports" + whereClause +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	rows, err := s.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, translate(err)
	}
	defer rows.Close()

	var imports []core.Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, 0, err
		}
		imports = append(imports, *imp)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translate(err)
	}
	return imports, total, nil
}

// UpdateImport applies a resolved update in one statement.
func (s *Store) UpdateImport(ctx context.Context, id string, upd core.ImportUpdate) (*core.Import, error) {
	uid := toPgUUID(id)
	if !uid.Valid {
		return nil, core.ErrNotFound
	}

	var (
		sets []string
		args = []any{uid}
	)
	set := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if v, ok := upd.Status.Get(); ok {
		set("status", string(v))
	}
	if v, ok := upd.TotalRows.Get(); ok {
		set("total_rows", v)
	}
	if v, ok := upd.ProcessedRows.Get(); ok {
		set("processed_rows", v)
	}
	if v, ok := upd.SuccessCount.Get(); ok {
		set("success_count", v)
	}
	if v, ok := upd.WarningCount.Get(); ok {
		set("warning_count", v)
	}
	if v, ok := upd.ErrorCount.Get(); ok {
		set("error_count", v)
	}
	if upd.ErrorMessage.IsSet() {
		set("error_message", toPgText(upd.ErrorMessage.Ptr()))
	}
	if upd.MarkStarted {
		sets = append(sets, "started_at = COALESCE(started_at, clock_timestamp())")
	}
	if upd.MarkCompleted {
		sets = append(sets, "completed_at = clock_timestamp()")
	}
	sets = append(sets, "updated_at = clock_timestamp()")

	query := "UPDATE imports SET " + strings.Join(sets, ", ") + " WHERE id = $1 RETURNING " + importColumns
	imp, err := scanImport(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translate(err)
	}
	return imp, nil
}

// IncrementCounts adds delta to the counters in a single UPDATE, so
// concurrent callers never overwrite each other.
func (s *Store) IncrementCounts(ctx context.Context, importID string, delta core.CounterDelta) error {
	uid := toPgUUID(importID)
	if !uid.Valid {
		return core.ErrNotFound
	}
	tag, err := s.db.Exec(ctx, `UPDATE imports SET
		processed_rows = processed_rows + $2,
		success_count  = success_count + $3,
		warning_count  = warning_count + $4,
		error_count    = error_count + $5,
		updated_at     = clock_timestamp()
	WHERE id = $1`,
		uid, delta.ProcessedRows, delta.SuccessCount, delta.WarningCount, delta.ErrorCount)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// LockImport locks the import row in the lock mode its counter update
// needs, so the update that follows never waits.
func (s *Store) LockImport(ctx context.Context, importID string) error {
	uid := toPgUUID(importID)
	if !uid.Valid {
		return nil
	}
	var one int
	err := s.db.QueryRow(ctx, `SELECT 1 FROM imports WHERE id = $1 FOR NO KEY UPDATE`, uid).Scan(&one)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return translate(err)
	}
	return nil
}

// DeleteImport removes an organization's import; row results cascade.
func (s *Store) DeleteImport(ctx context.Context, organizationID, id string) error {
	uid := toPgUUID(id)
	if !uid.Valid {
		return core.ErrNotFound
	}
	tag, err := s.db.Exec(ctx, "DELETE FROM imports WHERE id = $1 AND organization_id = $2", uid, organizationID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// PurgeImports deletes up to limit finished imports completed before cutoff.
func (s *Store) PurgeImports(ctx context.Context, completedBefore time.Time, limit int) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM imports WHERE id IN (
		SELECT id FROM imports
		WHERE status IN ('COMPLETED', 'FAILED') AND completed_at < $1
		ORDER BY completed_at
		LIMIT $2
	)`, completedBefore, limit)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}
