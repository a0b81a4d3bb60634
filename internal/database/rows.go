package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/importledger/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const rowColumns = `id, import_id, row_number, status, raw_data, entity_id, message, errors, created_at, updated_at`

func scanRow(row scanner, extra ...any) (*core.RowResult, error) {
	var (
		r        core.RowResult
		id       pgtype.UUID
		importID pgtype.UUID
		status   string
		rawData  pgtype.Text
		entityID pgtype.Text
		message  pgtype.Text
	)
	dest := append([]any{
		&id, &importID, &r.RowNumber, &status, &rawData, &entityID, &message, &r.Errors, &r.CreatedAt, &r.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if r.Status, err = core.ParseRowStatus(status); err != nil {
		return nil, err
	}
	r.ID = uuidString(id)
	r.ImportID = uuidString(importID)
	r.RawData = rawData.String
	r.EntityID = textPtr(entityID)
	r.Message = textPtr(message)
	return &r, nil
}

func collectRows(rows pgx.Rows) ([]core.RowResult, error) {
	defer rows.Close()

	var out []core.RowResult
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// InsertRowResults bulk-loads rows with COPY. created_at and updated_at take
// their column defaults.
func (s *Store) InsertRowResults(ctx context.Context, rows []core.RowResult) error {
	if len(rows) == 0 {
		return nil
	}

	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		r := rows[i]
		return []any{toPgUUID(r.ID), toPgUUID(r.ImportID), r.RowNumber, string(r.Status), r.RawData}, nil
	})

	n, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"row_results"},
		[]string{"id", "import_id", "row_number", "status", "raw_data"},
		src,
	)
	if err != nil {
		return translate(err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copy row results: wrote %d of %d rows", n, len(rows))
	}
	return nil
}

// CountRowResults returns the number of rows stored for an import.
func (s *Store) CountRowResults(ctx context.Context, importID string) (int64, error) {
	uid := toPgUUID(importID)
	if !uid.Valid {
		return 0, nil
	}
	var n int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM row_results WHERE import_id = $1", uid).Scan(&n); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// UpdateRowResult overwrites a row's outcome and returns the status it had
// before. The prior status is read under FOR UPDATE in the same statement,
// so two writers racing on one row see each other's result.
func (s *Store) UpdateRowResult(ctx context.Context, importID string, rowNumber int, outcome core.RowOutcome) (*core.RowResult, core.RowStatus, error) {
	uid := toPgUUID(importID)
	if !uid.Valid {
		return nil, "", nil
	}

	errs := outcome.Errors
	if errs == nil {
		errs = []string{}
	}

	query := `WITH prev AS (
		SELECT id, status FROM row_results
		WHERE import_id = $1 AND row_number = $2
		FOR UPDATE
	)
	UPDATE row_results r SET
		status     = $3,
		entity_id  = $4,
		message    = $5,
		errors     = $6,
		updated_at = clock_timestamp()
	FROM prev
	WHERE r.id = prev.id
	RETURNING r.id, r.import_id, r.row_number, r.status, r.raw_data, r.entity_id, r.message,
		r.errors, r.created_at, r.updated_at, prev.status`

	var prev string
	row, err := scanRow(s.db.QueryRow(ctx, query,
		uid, rowNumber, string(outcome.Status),
		toPgText(outcome.EntityID.Ptr()), toPgText(outcome.Message.Ptr()), errs,
	), &prev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", translate(err)
	}

	prevStatus, err := core.ParseRowStatus(prev)
	if err != nil {
		return nil, "", err
	}
	return row, prevStatus, nil
}

// ListRowResults returns matching rows ordered by row number.
func (s *Store) ListRowResults(ctx context.Context, importID string, filter core.RowFilter, limit, offset int) ([]core.RowResult, int64, error) {
	uid := toPgUUID(importID)
	if !uid.Valid {
		return nil, 0, nil
	}

	wb := core.NewWhereBuilder()
	wb.AddOp("import_id", "=", uid)
	if st, ok := filter.Status.Get(); ok {
		wb.Add("status", string(st))
	}
	whereClause, args := wb.Build()

	var total int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM row_results"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, translate(err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	query := "SELECT " + rowColumns + " FROM row_results" + whereClause +
		fmt.Sprintf(" ORDER BY row_number LIMIT $%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	rows, err := s.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, translate(err)
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// RowResultsUpdatedSince returns rows updated strictly after since.
func (s *Store) RowResultsUpdatedSince(ctx context.Context, importID string, since time.Time) ([]core.RowResult, error) {
	uid := toPgUUID(importID)
	if !uid.Valid {
		return nil, nil
	}

	wb := core.NewWhereBuilder()
	wb.AddOp("import_id", "=", uid)
	wb.AddOp("updated_at", ">", since)
	whereClause, args := wb.Build()

	rows, err := s.db.Query(ctx, "SELECT "+rowColumns+" FROM row_results"+whereClause+" ORDER BY row_number", args...)
	if err != nil {
		return nil, translate(err)
	}
	return collectRows(rows)
}
