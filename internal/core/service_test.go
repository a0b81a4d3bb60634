package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/importledger/internal/core"
	"github.com/JonMunkholm/importledger/internal/memstore"
)

var orgA = core.Identity{OrganizationID: "org-a", UserID: "user-1"}

func newService(t *testing.T, d core.Dispatcher) *core.Service {
	t.Helper()
	svc, err := core.NewService(memstore.New(), d, core.Options{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func createImport(t *testing.T, svc *core.Service) *core.Import {
	t.Helper()
	imp, err := svc.CreateImport(context.Background(), orgA, core.CreateImportInput{
		EntityType: core.EntityClient,
		FileName:   "c.csv",
		FileSize:   1024,
	}, "s3://bucket/c.csv")
	if err != nil {
		t.Fatalf("CreateImport: %v", err)
	}
	return imp
}

func createRows(t *testing.T, svc *core.Service, importID string, n int) {
	t.Helper()
	rows := make([]core.NewRow, n)
	for i := range rows {
		rows[i] = core.NewRow{RowNumber: i + 1, RawData: fmt.Sprintf("client %d,c%d@example.com", i+1, i+1)}
	}
	if err := svc.CreateRowResults(context.Background(), importID, rows); err != nil {
		t.Fatalf("CreateRowResults: %v", err)
	}
}

func mustGet(t *testing.T, svc *core.Service, id string) *core.Import {
	t.Helper()
	imp, err := svc.GetImport(context.Background(), orgA.OrganizationID, id)
	if err != nil {
		t.Fatalf("GetImport: %v", err)
	}
	return imp
}

func assertCounts(t *testing.T, imp *core.Import, processed, success, warning, errs int) {
	t.Helper()
	if imp.ProcessedRows != processed || imp.SuccessCount != success || imp.WarningCount != warning || imp.ErrorCount != errs {
		t.Errorf("counts = processed %d success %d warning %d error %d, want %d/%d/%d/%d",
			imp.ProcessedRows, imp.SuccessCount, imp.WarningCount, imp.ErrorCount,
			processed, success, warning, errs)
	}
	if !imp.Balanced() {
		t.Errorf("processedRows %d != bucket sum", imp.ProcessedRows)
	}
}

func TestCreateImport_StartsPendingWithZeroCounters(t *testing.T) {
	svc := newService(t, nil)
	imp := createImport(t, svc)

	if imp.Status != core.StatusPending {
		t.Errorf("status = %s, want PENDING", imp.Status)
	}
	assertCounts(t, imp, 0, 0, 0, 0)
	if imp.TotalRows != 0 || imp.StartedAt != nil || imp.CompletedAt != nil {
		t.Errorf("unexpected initial state: %+v", imp)
	}
	if imp.CreatedBy != "user-1" || imp.OrganizationID != "org-a" {
		t.Errorf("identity not recorded: %+v", imp)
	}
}

func TestCreateImport_RejectsInvalidInput(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		who  core.Identity
		in   core.CreateImportInput
		want error
	}{
		{"unknown entity", orgA, core.CreateImportInput{EntityType: "VENDOR", FileName: "v.csv"}, core.ErrInvalidEntityType},
		{"missing file name", orgA, core.CreateImportInput{EntityType: core.EntityClient}, core.ErrInvalidInput},
		{"negative size", orgA, core.CreateImportInput{EntityType: core.EntityClient, FileName: "c.csv", FileSize: -1}, core.ErrInvalidInput},
		{"missing organization", core.Identity{}, core.CreateImportInput{EntityType: core.EntityClient, FileName: "c.csv"}, core.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateImport(ctx, tt.who, tt.in, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLedger_EndToEndScenario(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	imp := createImport(t, svc)

	if _, err := svc.StartValidation(ctx, imp.ID, 3); err != nil {
		t.Fatalf("StartValidation: %v", err)
	}
	createRows(t, svc, imp.ID, 3)

	page, err := svc.ListRowResults(ctx, imp.ID, core.ListRowsOptions{})
	if err != nil {
		t.Fatalf("ListRowResults: %v", err)
	}
	if len(page.Data) != 3 || page.Data[0].RowNumber != 1 {
		t.Fatalf("rows = %+v, want 3 rows starting at row 1", page.Data)
	}
	for _, r := range page.Data {
		if r.Status != core.RowPending {
			t.Errorf("row %d status = %s, want PENDING", r.RowNumber, r.Status)
		}
	}

	if _, err := svc.StartProcessing(ctx, imp.ID); err != nil {
		t.Fatalf("StartProcessing: %v", err)
	}

	if _, err := svc.UpdateRowResult(ctx, imp.ID, 1, core.RowOutcome{Status: core.RowSuccess, EntityID: core.Some("client-1")}); err != nil {
		t.Fatalf("UpdateRowResult(1): %v", err)
	}
	assertCounts(t, mustGet(t, svc, imp.ID), 1, 1, 0, 0)

	row, err := svc.UpdateRowResult(ctx, imp.ID, 2, core.RowOutcome{Status: core.RowError, Errors: []string{"bad email"}})
	if err != nil {
		t.Fatalf("UpdateRowResult(2): %v", err)
	}
	if len(row.Errors) != 1 || row.Errors[0] != "bad email" {
		t.Errorf("row errors = %v", row.Errors)
	}
	assertCounts(t, mustGet(t, svc, imp.ID), 2, 1, 0, 1)

	done, err := svc.Complete(ctx, imp.ID, core.FinalCounts{SuccessCount: 1, WarningCount: 0, ErrorCount: 1})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != core.StatusCompleted || done.CompletedAt == nil {
		t.Errorf("after Complete: status %s completedAt %v", done.Status, done.CompletedAt)
	}
	assertCounts(t, done, 2, 1, 0, 1)
}

func TestGetImport_OtherOrganizationIsNotFound(t *testing.T) {
	svc := newService(t, nil)
	imp := createImport(t, svc)

	_, err := svc.GetImport(context.Background(), "org-b", imp.ID)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if err := svc.DeleteImport(context.Background(), "org-b", imp.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign delete error = %v, want ErrNotFound", err)
	}
}

func TestUpdateRowResult_MissingRowReturnsNil(t *testing.T) {
	svc := newService(t, nil)
	imp := createImport(t, svc)
	createRows(t, svc, imp.ID, 3)

	row, err := svc.UpdateRowResult(context.Background(), imp.ID, 999, core.RowOutcome{Status: core.RowSuccess})
	if err != nil || row != nil {
		t.Fatalf("UpdateRowResult(999) = %v, %v; want nil, nil", row, err)
	}
	assertCounts(t, mustGet(t, svc, imp.ID), 0, 0, 0, 0)
}

func TestUpdateRowResult_RejectsPendingOutcome(t *testing.T) {
	svc := newService(t, nil)
	imp := createImport(t, svc)
	createRows(t, svc, imp.ID, 1)

	_, err := svc.UpdateRowResult(context.Background(), imp.ID, 1, core.RowOutcome{Status: core.RowPending})
	if !errors.Is(err, core.ErrInvalidRowStatus) {
		t.Errorf("error = %v, want ErrInvalidRowStatus", err)
	}
}

func TestUpdateRowResult_RefinalizationMovesBucket(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	imp := createImport(t, svc)
	createRows(t, svc, imp.ID, 2)

	steps := []struct {
		row    int
		status core.RowStatus
		want   [4]int
	}{
		{1, core.RowWarning, [4]int{1, 0, 1, 0}},
		{1, core.RowWarning, [4]int{1, 0, 1, 0}},
		{1, core.RowSuccess, [4]int{1, 1, 0, 0}},
		{2, core.RowSkipped, [4]int{2, 1, 0, 1}},
		{2, core.RowError, [4]int{2, 1, 0, 1}},
	}
	for i, st := range steps {
		if _, err := svc.UpdateRowResult(ctx, imp.ID, st.row, core.RowOutcome{Status: st.status}); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		assertCounts(t, mustGet(t, svc, imp.ID), st.want[0], st.want[1], st.want[2], st.want[3])
	}
}

// callLog records the order of store calls made while finalizing a row.
type callLog struct {
	*memstore.Store
	calls *[]string
}

func (c callLog) InTx(ctx context.Context, fn func(core.Store) error) error {
	return c.Store.InTx(ctx, func(tx core.Store) error {
		return fn(callLog{Store: tx.(*memstore.Store), calls: c.calls})
	})
}

func (c callLog) LockImport(ctx context.Context, importID string) error {
	*c.calls = append(*c.calls, "lock")
	return c.Store.LockImport(ctx, importID)
}

func (c callLog) UpdateRowResult(ctx context.Context, importID string, rowNumber int, outcome core.RowOutcome) (*core.RowResult, core.RowStatus, error) {
	*c.calls = append(*c.calls, "row")
	return c.Store.UpdateRowResult(ctx, importID, rowNumber, outcome)
}

func (c callLog) IncrementCounts(ctx context.Context, importID string, delta core.CounterDelta) error {
	*c.calls = append(*c.calls, "counts")
	return c.Store.IncrementCounts(ctx, importID, delta)
}

func TestUpdateRowResult_LocksImportBeforeStampingRow(t *testing.T) {
	var calls []string
	svc, err := core.NewService(callLog{Store: memstore.New(), calls: &calls}, nil, core.Options{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()
	imp := createImport(t, svc)
	createRows(t, svc, imp.ID, 1)

	calls = nil
	if _, err := svc.UpdateRowResult(ctx, imp.ID, 1, core.RowOutcome{Status: core.RowSuccess}); err != nil {
		t.Fatalf("UpdateRowResult: %v", err)
	}
	if got := strings.Join(calls, ","); got != "lock,row,counts" {
		t.Errorf("store calls = %s, want lock,row,counts", got)
	}
}

func TestUpdateRowResult_ConcurrentCompletionsKeepCountersBalanced(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	imp := createImport(t, svc)

	const n = 200
	createRows(t, svc, imp.ID, n)

	statuses := []core.RowStatus{core.RowSuccess, core.RowWarning, core.RowError, core.RowSkipped}
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(row int) {
			defer wg.Done()
			if _, err := svc.UpdateRowResult(ctx, imp.ID, row, core.RowOutcome{Status: statuses[row%len(statuses)]}); err != nil {
				t.Errorf("row %d: %v", row, err)
			}
		}(i)
	}
	wg.Wait()

	assertCounts(t, mustGet(t, svc, imp.ID), n, n/4, n/4, n/2)
}

func TestUpdateImportStatus_StartedAtIsStampedOnce(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	imp := createImport(t, svc)

	v, err := svc.StartValidation(ctx, imp.ID, 2)
	if err != nil {
		t.Fatalf("StartValidation: %v", err)
	}
	if v.StartedAt == nil {
		t.Fatal("startedAt not set on VALIDATING")
	}
	first := *v.StartedAt

	p, err := svc.StartProcessing(ctx, imp.ID)
	if err != nil {
		t.Fatalf("StartProcessing: %v", err)
	}
	if p.StartedAt == nil || !p.StartedAt.Equal(first) {
		t.Errorf("startedAt changed from %v to %v", first, p.StartedAt)
	}
}

func TestUpdateImportStatus_FailStampsCompletedAt(t *testing.T) {
	svc := newService(t, nil)
	imp := createImport(t, svc)

	failed, err := svc.Fail(context.Background(), imp.ID, "parse error on line 4")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if failed.Status != core.StatusFailed || failed.CompletedAt == nil {
		t.Errorf("status %s completedAt %v", failed.Status, failed.CompletedAt)
	}
	if failed.ErrorMessage == nil || *failed.ErrorMessage != "parse error on line 4" {
		t.Errorf("errorMessage = %v", failed.ErrorMessage)
	}
}

// Transitions are recorded in whatever order workers report them.
func TestFail_TruncatesLongMessageOnRuneBoundary(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	imp := createImport(t, svc)

	failed, err := svc.Fail(ctx, imp.ID, "x"+strings.Repeat("é", 600))
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	msg := *failed.ErrorMessage
	if len(msg) > 1000 || !utf8.ValidString(msg) {
		t.Errorf("errorMessage len=%d valid=%v", len(msg), utf8.ValidString(msg))
	}
	if len(msg) != 999 {
		t.Errorf("errorMessage len = %d, want 999", len(msg))
	}
}

func TestLedger_OutOfOrderTransitionsAreRecorded(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	imp := createImport(t, svc)

	if _, err := svc.Complete(ctx, imp.ID, core.FinalCounts{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	back, err := svc.StartProcessing(ctx, imp.ID)
	if err != nil {
		t.Fatalf("StartProcessing after Complete: %v", err)
	}
	if back.Status != core.StatusProcessing {
		t.Errorf("status = %s, want PROCESSING", back.Status)
	}
	if back.CompletedAt == nil {
		t.Error("completedAt was cleared")
	}
}

func TestUpdateImportStatus_RejectsInvalidPatch(t *testing.T) {
	svc := newService(t, nil)
	imp := createImport(t, svc)
	ctx := context.Background()

	_, err := svc.UpdateImportStatus(ctx, imp.ID, core.ImportPatch{Status: core.Some(core.ImportStatus("DONE"))})
	if !errors.Is(err, core.ErrInvalidStatus) {
		t.Errorf("unknown status error = %v, want ErrInvalidStatus", err)
	}
	_, err = svc.UpdateImportStatus(ctx, imp.ID, core.ImportPatch{ErrorCount: core.Some(-1)})
	if !errors.Is(err, core.ErrInvalidPatch) {
		t.Errorf("negative counter error = %v, want ErrInvalidPatch", err)
	}
	_, err = svc.UpdateImportStatus(ctx, "missing", core.ImportPatch{Status: core.Some(core.StatusFailed)})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing import error = %v, want ErrNotFound", err)
	}
}

func TestUpdateImportStatus_TotalRowsIsSetOnce(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	imp := createImport(t, svc)

	if _, err := svc.StartValidation(ctx, imp.ID, 3); err != nil {
		t.Fatalf("StartValidation: %v", err)
	}
	if _, err := svc.StartValidation(ctx, imp.ID, 3); err != nil {
		t.Errorf("repeating the same totalRows: %v", err)
	}
	_, err := svc.StartValidation(ctx, imp.ID, 4)
	if !errors.Is(err, core.ErrTotalRowsLocked) || !core.IsConflict(err) {
		t.Errorf("changing totalRows error = %v, want ErrTotalRowsLocked", err)
	}
}

func TestCreateRowResults_Contract(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	imp := createImport(t, svc)
	if _, err := svc.StartValidation(ctx, imp.ID, 2); err != nil {
		t.Fatalf("StartValidation: %v", err)
	}

	tests := []struct {
		name string
		rows []core.NewRow
		want error
	}{
		{"count mismatch", []core.NewRow{{RowNumber: 1}}, core.ErrRowCountMismatch},
		{"zero row number", []core.NewRow{{RowNumber: 0}, {RowNumber: 1}}, core.ErrInvalidRowNumber},
		{"duplicate row number", []core.NewRow{{RowNumber: 1}, {RowNumber: 1}}, core.ErrDuplicateRowNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CreateRowResults(ctx, imp.ID, tt.rows)
			if !errors.Is(err, tt.want) || !core.IsInvalidInput(err) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	createRows(t, svc, imp.ID, 2)
	err := svc.CreateRowResults(ctx, imp.ID, []core.NewRow{{RowNumber: 1}, {RowNumber: 2}})
	if !errors.Is(err, core.ErrRowsAlreadyCreated) {
		t.Errorf("second batch error = %v, want ErrRowsAlreadyCreated", err)
	}
	if err := svc.CreateRowResults(ctx, "missing", nil); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown import error = %v, want ErrNotFound", err)
	}
}

func TestCreateRowResults_RawDataIsStoredVerbatim(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	imp := createImport(t, svc)

	payloads := []string{"alice,a@x.io", `{"b": 1,  "a": 2, "a": 3}`, ""}
	rows := make([]core.NewRow, len(payloads))
	for i, raw := range payloads {
		rows[i] = core.NewRow{RowNumber: i + 1, RawData: raw}
	}
	if err := svc.CreateRowResults(ctx, imp.ID, rows); err != nil {
		t.Fatalf("CreateRowResults: %v", err)
	}

	page, err := svc.ListRowResults(ctx, imp.ID, core.ListRowsOptions{})
	if err != nil {
		t.Fatalf("ListRowResults: %v", err)
	}
	body, err := json.Marshal(page)
	if err != nil {
		t.Fatalf("json.Marshal(page): %v", err)
	}
	var decoded core.RowPage
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	for i, raw := range payloads {
		if decoded.Data[i].RawData != raw {
			t.Errorf("row %d rawData = %q, want %q", i+1, decoded.Data[i].RawData, raw)
		}
	}
}

func TestDeleteImport_CascadesToRows(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	imp := createImport(t, svc)
	createRows(t, svc, imp.ID, 3)

	if err := svc.DeleteImport(ctx, orgA.OrganizationID, imp.ID); err != nil {
		t.Fatalf("DeleteImport: %v", err)
	}
	if _, err := svc.GetImport(ctx, orgA.OrganizationID, imp.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("get after delete = %v, want ErrNotFound", err)
	}
	page, err := svc.ListRowResults(ctx, imp.ID, core.ListRowsOptions{})
	if err != nil {
		t.Fatalf("ListRowResults: %v", err)
	}
	if page.Total != 0 || len(page.Data) != 0 {
		t.Errorf("rows after delete = %d", page.Total)
	}
	list, _ := svc.ListImports(ctx, orgA.OrganizationID, core.ListImportsOptions{})
	if list.Total != 0 {
		t.Errorf("imports after delete = %d", list.Total)
	}
}

func TestListImports_PaginationAndFilters(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	empty, err := svc.ListImports(ctx, orgA.OrganizationID, core.ListImportsOptions{})
	if err != nil {
		t.Fatalf("ListImports: %v", err)
	}
	if empty.TotalPages != 0 || empty.Total != 0 || empty.Data == nil {
		t.Errorf("empty page = %+v, want zero totals and non-nil data", empty)
	}

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, createImport(t, svc).ID)
	}
	if _, err := svc.Fail(ctx, ids[0], "x"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	page, err := svc.ListImports(ctx, orgA.OrganizationID, core.ListImportsOptions{PageRequest: core.PageRequest{Page: 1, Limit: 2}})
	if err != nil {
		t.Fatalf("ListImports: %v", err)
	}
	if len(page.Data) != 2 || page.Total != 5 || page.TotalPages != 3 {
		t.Errorf("page = %d items, total %d, pages %d; want 2, 5, 3", len(page.Data), page.Total, page.TotalPages)
	}
	if page.Data[0].ID != ids[4] {
		t.Errorf("first item = %s, want newest %s", page.Data[0].ID, ids[4])
	}

	failed, _ := svc.ListImports(ctx, orgA.OrganizationID, core.ListImportsOptions{Status: core.Some(core.StatusFailed)})
	if failed.Total != 1 || failed.Data[0].ID != ids[0] {
		t.Errorf("status filter = %+v", failed)
	}
	tx, _ := svc.ListImports(ctx, orgA.OrganizationID, core.ListImportsOptions{EntityType: core.Some(core.EntityTransaction)})
	if tx.Total != 0 {
		t.Errorf("entity filter total = %d, want 0", tx.Total)
	}
	other, _ := svc.ListImports(ctx, "org-b", core.ListImportsOptions{})
	if other.Total != 0 {
		t.Errorf("org-b sees %d imports", other.Total)
	}
}

func TestGetImportWithResults_FiltersRows(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	imp := createImport(t, svc)
	createRows(t, svc, imp.ID, 4)
	svc.UpdateRowResult(ctx, imp.ID, 3, core.RowOutcome{Status: core.RowError})

	got, err := svc.GetImportWithResults(ctx, orgA.OrganizationID, imp.ID, core.ListRowsOptions{Status: core.Some(core.RowError)})
	if err != nil {
		t.Fatalf("GetImportWithResults: %v", err)
	}
	if got.Import.ID != imp.ID || got.Results.Total != 1 || got.Results.Data[0].RowNumber != 3 {
		t.Errorf("results = %+v", got.Results)
	}
	if _, err := svc.GetImportWithResults(ctx, "org-b", imp.ID, core.ListRowsOptions{}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign error = %v, want ErrNotFound", err)
	}
}

func TestGetRecentRowUpdates_StrictlyAfterSince(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	imp := createImport(t, svc)
	createRows(t, svc, imp.ID, 3)

	since, err := svc.Store().Now(ctx)
	if err != nil {
		t.Fatalf("Now: %v", err)
	}
	svc.UpdateRowResult(ctx, imp.ID, 3, core.RowOutcome{Status: core.RowSuccess})
	svc.UpdateRowResult(ctx, imp.ID, 1, core.RowOutcome{Status: core.RowSuccess})

	rows, err := svc.GetRecentRowUpdates(ctx, imp.ID, since)
	if err != nil {
		t.Fatalf("GetRecentRowUpdates: %v", err)
	}
	if len(rows) != 2 || rows[0].RowNumber != 1 || rows[1].RowNumber != 3 {
		t.Fatalf("rows = %+v, want rows 1 and 3 in order", rows)
	}
	for _, r := range rows {
		if !r.UpdatedAt.After(since) {
			t.Errorf("row %d updatedAt %v not after %v", r.RowNumber, r.UpdatedAt, since)
		}
	}
}

func TestStartImport_DispatchesDescriptor(t *testing.T) {
	var got core.JobDescriptor
	svc := newService(t, core.DispatcherFunc(func(ctx context.Context, job core.JobDescriptor) error {
		got = job
		return nil
	}))

	imp, err := svc.StartImport(context.Background(), orgA, core.CreateImportInput{
		EntityType: core.EntityTransaction,
		FileName:   "t.csv",
	}, "s3://bucket/t.csv")
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	want := core.JobDescriptor{
		ImportID:       imp.ID,
		OrganizationID: "org-a",
		EntityType:     core.EntityTransaction,
		FileURL:        "s3://bucket/t.csv",
		CreatedBy:      "user-1",
	}
	if got != want {
		t.Errorf("descriptor = %+v, want %+v", got, want)
	}
}

func TestStartImport_DispatchFailureFailsImport(t *testing.T) {
	queueDown := errors.New("queue down")
	svc := newService(t, core.DispatcherFunc(func(ctx context.Context, job core.JobDescriptor) error {
		return queueDown
	}))

	imp, err := svc.StartImport(context.Background(), orgA, core.CreateImportInput{
		EntityType: core.EntityClient,
		FileName:   "c.csv",
	}, "")
	if !errors.Is(err, core.ErrDispatch) || !errors.Is(err, queueDown) {
		t.Fatalf("error = %v, want ErrDispatch wrapping queue error", err)
	}
	if imp == nil || imp.Status != core.StatusFailed || imp.ErrorMessage == nil {
		t.Fatalf("import = %+v, want FAILED with message", imp)
	}
}

func TestPollProgress_CursorDoesNotMissUpdates(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	imp := createImport(t, svc)
	createRows(t, svc, imp.ID, 3)

	first, err := svc.PollProgress(ctx, orgA.OrganizationID, imp.ID, time.Time{})
	if err != nil {
		t.Fatalf("PollProgress: %v", err)
	}
	if len(first.Rows) != 3 {
		t.Errorf("initial poll rows = %d, want 3", len(first.Rows))
	}

	svc.UpdateRowResult(ctx, imp.ID, 2, core.RowOutcome{Status: core.RowWarning, Message: core.Some("trimmed")})

	second, err := svc.PollProgress(ctx, orgA.OrganizationID, imp.ID, first.Cursor)
	if err != nil {
		t.Fatalf("PollProgress: %v", err)
	}
	if len(second.Rows) != 1 || second.Rows[0].RowNumber != 2 {
		t.Fatalf("second poll rows = %+v, want row 2", second.Rows)
	}
	if second.Import.ProcessedRows != 1 {
		t.Errorf("processedRows = %d, want 1", second.Import.ProcessedRows)
	}

	again, _ := svc.PollProgress(ctx, orgA.OrganizationID, imp.ID, first.Cursor)
	if len(again.Rows) != 1 {
		t.Errorf("repeated poll rows = %d, want 1", len(again.Rows))
	}

	if _, err := svc.PollProgress(ctx, "org-b", imp.ID, time.Time{}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("foreign poll error = %v, want ErrNotFound", err)
	}
}

func TestProgressTracker_EmitsEvents(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	imp := createImport(t, svc)
	createRows(t, svc, imp.ID, 1)

	tracker := core.NewProgressTracker(time.Time{})
	poll := func() []core.ProgressEvent {
		snap, err := svc.PollProgress(ctx, orgA.OrganizationID, imp.ID, tracker.Cursor())
		if err != nil {
			t.Fatalf("PollProgress: %v", err)
		}
		return tracker.Observe(snap, time.Now())
	}
	types := func(events []core.ProgressEvent) []core.ProgressEventType {
		var out []core.ProgressEventType
		for _, e := range events {
			out = append(out, e.Type)
		}
		return out
	}

	got := types(poll())
	if len(got) != 2 || got[0] != core.EventRowUpdate || got[1] != core.EventStatusChange {
		t.Errorf("first poll events = %v", got)
	}
	if got := poll(); len(got) != 0 {
		t.Errorf("idle poll events = %v, want none", types(got))
	}

	svc.UpdateRowResult(ctx, imp.ID, 1, core.RowOutcome{Status: core.RowSuccess})
	svc.Complete(ctx, imp.ID, core.FinalCounts{SuccessCount: 1})

	got = types(poll())
	want := []core.ProgressEventType{core.EventRowUpdate, core.EventStatusChange, core.EventCompleted}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("final poll events = %v, want %v", got, want)
	}
	if !tracker.Done() {
		t.Error("tracker not done after completion")
	}
}

func TestPurgeFinishedImports(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	var finished []string
	for i := 0; i < 5; i++ {
		imp := createImport(t, svc)
		if i < 3 {
			svc.Complete(ctx, imp.ID, core.FinalCounts{})
			finished = append(finished, imp.ID)
		}
	}

	n, err := svc.PurgeFinishedImports(ctx, time.Now().Add(time.Minute), 2)
	if err != nil {
		t.Fatalf("PurgeFinishedImports: %v", err)
	}
	if n != 3 {
		t.Errorf("purged = %d, want 3", n)
	}
	list, _ := svc.ListImports(ctx, orgA.OrganizationID, core.ListImportsOptions{})
	if list.Total != 2 {
		t.Errorf("remaining = %d, want 2", list.Total)
	}
}
