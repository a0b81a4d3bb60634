// Package memstore is an in-memory implementation of core.Store.
//
// It backs the server when STORE_DRIVER=memory and every service test that
// does not need PostgreSQL. All state sits behind one mutex; InTx holds it
// for the whole callback and replays an undo log if the callback fails.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/importledger/internal/core"
)

type state struct {
	imports map[string]*core.Import
	rows    map[string]map[int]*core.RowResult
	last    time.Time
}

// Store keeps imports and row results in process memory.
type Store struct {
	mu *sync.Mutex
	st *state

	// inTx is set on the view handed to an InTx callback, whose caller
	// already holds mu. undo collects the inverse of every change the
	// callback makes, newest last.
	inTx bool
	undo *[]func()
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	st := &state{
		imports: make(map[string]*core.Import),
		rows:    make(map[string]map[int]*core.RowResult),
	}
	return &Store{mu: &sync.Mutex{}, st: st}
}

func (m *Store) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// tick returns a store timestamp strictly after every earlier one, at the
// microsecond precision PostgreSQL keeps.
func (m *Store) tick() time.Time {
	s := m.st
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

// Now returns the store clock.
func (m *Store) Now(ctx context.Context) (time.Time, error) {
	defer m.lock()()
	return m.tick(), nil
}

// InTx runs fn while holding the store lock. State changes are discarded
// if fn returns an error.
func (m *Store) InTx(ctx context.Context, fn func(core.Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var undo []func()
	tx := &Store{mu: m.mu, st: m.st, inTx: true, undo: &undo}
	if err := fn(tx); err != nil {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return err
	}
	return nil
}

// onRollback registers the inverse of a change. Outside InTx changes are
// final and nothing is recorded.
func (m *Store) onRollback(fn func()) {
	if m.undo != nil {
		*m.undo = append(*m.undo, fn)
	}
}

// restoreImport returns an undo func that puts back the current value of
// an import.
func (s *state) restoreImport(imp *core.Import) func() {
	saved := *imp
	return func() { s.imports[saved.ID] = &saved }
}

// InsertImport stores imp with fresh timestamps.
func (m *Store) InsertImport(ctx context.Context, imp core.Import) (*core.Import, error) {
	defer m.lock()()
	s := m.st
	if _, exists := s.imports[imp.ID]; exists {
		return nil, fmt.Errorf("duplicate key: import %s", imp.ID)
	}
	now := m.tick()
	imp.CreatedAt, imp.UpdatedAt = now, now
	s.imports[imp.ID] = &imp
	m.onRollback(func() { delete(s.imports, imp.ID) })
	out := imp
	return &out, nil
}

// GetImport returns an organization's import.
func (m *Store) GetImport(ctx context.Context, organizationID, id string) (*core.Import, error) {
	defer m.lock()()
	imp, ok := m.st.imports[id]
	if !ok || imp.OrganizationID != organizationID {
		return nil, core.ErrNotFound
	}
	out := *imp
	return &out, nil
}

// GetImportByID returns an import regardless of organization.
func (m *Store) GetImportByID(ctx context.Context, id string) (*core.Import, error) {
	defer m.lock()()
	imp, ok := m.st.imports[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *imp
	return &out, nil
}

// ListImports returns matching imports, newest first.
func (m *Store) ListImports(ctx context.Context, organizationID string, filter core.ImportFilter, limit, offset int) ([]core.Import, int64, error) {
	defer m.lock()()

	var matched []core.Import
	for _, imp := range m.st.imports {
		if imp.OrganizationID != organizationID {
			continue
		}
		if st, ok := filter.Status.Get(); ok && imp.Status != st {
			continue
		}
		if et, ok := filter.EntityType.Get(); ok && imp.EntityType != et {
			continue
		}
		matched = append(matched, *imp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return window(matched, limit, offset), int64(len(matched)), nil
}

// UpdateImport applies a resolved update.
func (m *Store) UpdateImport(ctx context.Context, id string, upd core.ImportUpdate) (*core.Import, error) {
	defer m.lock()()
	imp, ok := m.st.imports[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	m.onRollback(m.st.restoreImport(imp))

	now := m.tick()
	if v, ok := upd.Status.Get(); ok {
		imp.Status = v
	}
	if v, ok := upd.TotalRows.Get(); ok {
		imp.TotalRows = v
	}
	if v, ok := upd.ProcessedRows.Get(); ok {
		imp.ProcessedRows = v
	}
	if v, ok := upd.SuccessCount.Get(); ok {
		imp.SuccessCount = v
	}
	if v, ok := upd.WarningCount.Get(); ok {
		imp.WarningCount = v
	}
	if v, ok := upd.ErrorCount.Get(); ok {
		imp.ErrorCount = v
	}
	if upd.ErrorMessage.IsSet() {
		imp.ErrorMessage = upd.ErrorMessage.Ptr()
	}
	if upd.MarkStarted && imp.StartedAt == nil {
		t := now
		imp.StartedAt = &t
	}
	if upd.MarkCompleted {
		t := now
		imp.CompletedAt = &t
	}
	imp.UpdatedAt = now

	out := *imp
	return &out, nil
}

// DeleteImport removes an organization's import and its rows.
func (m *Store) DeleteImport(ctx context.Context, organizationID, id string) error {
	defer m.lock()()
	s := m.st
	imp, ok := s.imports[id]
	if !ok || imp.OrganizationID != organizationID {
		return core.ErrNotFound
	}
	m.forget(imp)
	return nil
}

// forget removes an import and its rows.
func (m *Store) forget(imp *core.Import) {
	s := m.st
	rows, hadRows := s.rows[imp.ID]
	delete(s.imports, imp.ID)
	delete(s.rows, imp.ID)
	m.onRollback(func() {
		s.imports[imp.ID] = imp
		if hadRows {
			s.rows[imp.ID] = rows
		}
	})
}

// PurgeImports removes up to limit finished imports completed before cutoff.
func (m *Store) PurgeImports(ctx context.Context, completedBefore time.Time, limit int) (int64, error) {
	defer m.lock()()
	s := m.st

	var victims []*core.Import
	for _, imp := range s.imports {
		if imp.Status.Terminal() && imp.CompletedAt != nil && imp.CompletedAt.Before(completedBefore) {
			victims = append(victims, imp)
		}
	}
	sort.Slice(victims, func(i, j int) bool { return victims[i].CompletedAt.Before(*victims[j].CompletedAt) })
	if limit > 0 && len(victims) > limit {
		victims = victims[:limit]
	}
	for _, imp := range victims {
		m.forget(imp)
	}
	return int64(len(victims)), nil
}

// LockImport is a no-op: InTx already holds the store lock.
func (m *Store) LockImport(ctx context.Context, importID string) error {
	return nil
}

// IncrementCounts adds delta to the import's counters.
func (m *Store) IncrementCounts(ctx context.Context, importID string, delta core.CounterDelta) error {
	defer m.lock()()
	imp, ok := m.st.imports[importID]
	if !ok {
		return core.ErrNotFound
	}
	m.onRollback(m.st.restoreImport(imp))
	imp.ProcessedRows += delta.ProcessedRows
	imp.SuccessCount += delta.SuccessCount
	imp.WarningCount += delta.WarningCount
	imp.ErrorCount += delta.ErrorCount
	imp.UpdatedAt = m.tick()
	return nil
}

// InsertRowResults stores rows for an existing import.
func (m *Store) InsertRowResults(ctx context.Context, rows []core.RowResult) error {
	defer m.lock()()
	s := m.st
	now := m.tick()
	for _, r := range rows {
		if _, ok := s.imports[r.ImportID]; !ok {
			return fmt.Errorf("row %d violates foreign key constraint: %w", r.RowNumber, core.ErrNotFound)
		}
		byNum := s.rows[r.ImportID]
		if byNum == nil {
			byNum = make(map[int]*core.RowResult)
			s.rows[r.ImportID] = byNum
			importID := r.ImportID
			m.onRollback(func() { delete(s.rows, importID) })
		}
		if _, dup := byNum[r.RowNumber]; dup {
			return fmt.Errorf("duplicate key: row %d of import %s", r.RowNumber, r.ImportID)
		}
		r.CreatedAt, r.UpdatedAt = now, now
		if r.Errors == nil {
			r.Errors = []string{}
		}
		row := r
		byNum[r.RowNumber] = &row
		m.onRollback(func() { delete(byNum, row.RowNumber) })
	}
	return nil
}

// CountRowResults returns the number of rows stored for an import.
func (m *Store) CountRowResults(ctx context.Context, importID string) (int64, error) {
	defer m.lock()()
	return int64(len(m.st.rows[importID])), nil
}

// UpdateRowResult overwrites a row's outcome and returns its prior status.
func (m *Store) UpdateRowResult(ctx context.Context, importID string, rowNumber int, outcome core.RowOutcome) (*core.RowResult, core.RowStatus, error) {
	defer m.lock()()
	row, ok := m.st.rows[importID][rowNumber]
	if !ok {
		return nil, "", nil
	}

	saved := *row
	m.onRollback(func() { *row = saved })

	prev := row.Status
	row.Status = outcome.Status
	row.EntityID = outcome.EntityID.Ptr()
	row.Message = outcome.Message.Ptr()
	row.Errors = append([]string{}, outcome.Errors...)
	row.UpdatedAt = m.tick()

	out := *row
	return &out, prev, nil
}

// ListRowResults returns matching rows ordered by row number.
func (m *Store) ListRowResults(ctx context.Context, importID string, filter core.RowFilter, limit, offset int) ([]core.RowResult, int64, error) {
	defer m.lock()()
	matched := m.sortedRows(importID, func(r *core.RowResult) bool {
		st, ok := filter.Status.Get()
		return !ok || r.Status == st
	})
	return window(matched, limit, offset), int64(len(matched)), nil
}

// RowResultsUpdatedSince returns rows updated strictly after since.
func (m *Store) RowResultsUpdatedSince(ctx context.Context, importID string, since time.Time) ([]core.RowResult, error) {
	defer m.lock()()
	return m.sortedRows(importID, func(r *core.RowResult) bool {
		return r.UpdatedAt.After(since)
	}), nil
}

func (m *Store) sortedRows(importID string, keep func(*core.RowResult) bool) []core.RowResult {
	var out []core.RowResult
	for _, r := range m.st.rows[importID] {
		if keep(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowNumber < out[j].RowNumber })
	return out
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
