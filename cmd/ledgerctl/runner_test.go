package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/JonMunkholm/importledger/internal/config"
	"github.com/JonMunkholm/importledger/internal/core"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := &config.Config{
		Store:     config.StoreConfig{Driver: config.DriverMemory},
		Imports:   config.ImportsConfig{DefaultPageSize: 20, MaxPageSize: 100, DispatchChannel: "import_jobs"},
		Retention: config.RetentionConfig{Days: 30, BatchSize: 10},
	}
	r := NewRunner(RunnerOpts{Config: cfg, Logger: log.New(io.Discard), Output: &out})
	t.Cleanup(r.Close)
	return r, &out
}

func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "ledgerctl", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"ledgerctl"}, args...))
}

func seed(t *testing.T, r *Runner) *core.Import {
	t.Helper()
	ctx := context.Background()
	app, err := r.open(ctx)
	if err != nil {
		t.Fatal(err)
	}
	imp, err := app.Service.StartImport(ctx, core.Identity{OrganizationID: "org-1", UserID: "u"},
		core.CreateImportInput{EntityType: core.EntityTransaction, FileName: "tx.csv"}, "s3://b/tx.csv")
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Service.CreateRowResults(ctx, imp.ID, []core.NewRow{{RowNumber: 1}, {RowNumber: 2}}); err != nil {
		t.Fatal(err)
	}
	if _, err := app.Service.UpdateRowResult(ctx, imp.ID, 2, core.RowOutcome{Status: core.RowError, Errors: []string{"bad amount"}}); err != nil {
		t.Fatal(err)
	}
	return imp
}

func TestImportsList(t *testing.T) {
	r, out := newTestRunner(t)
	seed(t, r)

	if err := run(t, r, "imports", "list", "--org", "org-1", "--entity", "transaction"); err != nil {
		t.Fatalf("list: %v", err)
	}
	var page core.ImportPage
	if err := json.Unmarshal(out.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v (%s)", err, out.String())
	}
	if page.Total != 1 || page.Data[0].FileName != "tx.csv" {
		t.Errorf("page = %+v", page)
	}

	out.Reset()
	if err := run(t, r, "imports", "list", "--org", "org-2"); err != nil {
		t.Fatalf("list other org: %v", err)
	}
	if !strings.Contains(out.String(), `"total": 0`) {
		t.Errorf("other org sees imports: %s", out.String())
	}

	if err := run(t, r, "imports", "list", "--org", "org-1", "--status", "DONE"); !errors.Is(err, core.ErrInvalidStatus) {
		t.Errorf("bad status error = %v", err)
	}
}

func TestImportsShowRowsAndPoll(t *testing.T) {
	r, out := newTestRunner(t)
	imp := seed(t, r)

	if err := run(t, r, "imports", "show", "--org", "org-1", imp.ID); err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out.String(), `"errorCount": 1`) {
		t.Errorf("show output = %s", out.String())
	}

	out.Reset()
	if err := run(t, r, "imports", "rows", "--org", "org-1", "--status", "ERROR", imp.ID); err != nil {
		t.Fatalf("rows: %v", err)
	}
	var res core.ImportWithResults
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Results.Total != 1 || res.Results.Data[0].RowNumber != 2 {
		t.Errorf("rows = %+v", res.Results)
	}

	out.Reset()
	if err := run(t, r, "imports", "poll", "--org", "org-1", imp.ID); err != nil {
		t.Fatalf("poll: %v", err)
	}
	var snap core.ProgressSnapshot
	if err := json.Unmarshal(out.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Rows) != 2 || snap.Cursor.IsZero() {
		t.Errorf("snapshot = %+v", snap)
	}

	if err := run(t, r, "imports", "show", "--org", "org-2", imp.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-org show error = %v", err)
	}
	if err := run(t, r, "imports", "show", "--org", "org-1"); err == nil {
		t.Error("show without id should fail")
	}
}

func TestImportsFail(t *testing.T) {
	r, out := newTestRunner(t)
	imp := seed(t, r)

	if err := run(t, r, "imports", "fail", "-m", "worker crashed", imp.ID); err != nil {
		t.Fatalf("fail: %v", err)
	}
	var got core.Import
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != core.StatusFailed || got.ErrorMessage == nil || *got.ErrorMessage != "worker crashed" {
		t.Errorf("import = %+v", got)
	}
}

func TestPurgeKeepsRecentImports(t *testing.T) {
	r, out := newTestRunner(t)
	imp := seed(t, r)
	if err := run(t, r, "imports", "fail", "-m", "x", imp.ID); err != nil {
		t.Fatal(err)
	}
	out.Reset()

	if err := run(t, r, "purge", "--days", "1"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if !strings.Contains(out.String(), "purged 0 import(s)") {
		t.Errorf("output = %s", out.String())
	}
}

func TestPostgresOnlyCommands(t *testing.T) {
	r, _ := newTestRunner(t)

	for _, args := range [][]string{
		{"migrate", "up"},
		{"migrate", "version"},
		{"reset", "--yes"},
		{"listen"},
	} {
		if err := run(t, r, args...); !errors.Is(err, errNeedsPostgres) {
			t.Errorf("%v: error = %v, want errNeedsPostgres", args, err)
		}
	}

	if err := run(t, r, "reset"); err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Errorf("reset without confirmation: %v", err)
	}
}
