package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/importledger/internal/application"
	"github.com/JonMunkholm/importledger/internal/config"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

var errNeedsPostgres = errors.New("this command needs STORE_DRIVER=postgres")

// Runner holds the dependencies shared by every ledgerctl command.
type Runner struct {
	config *config.Config
	logger *log.Logger
	output io.Writer
	app    *application.App
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *config.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a Runner. The ledger is opened on first use.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{config: opts.Config, logger: opts.Logger, output: opts.Output}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		migrateCommand, importsCommand, purgeCommand, resetCommand, listenCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// open connects the ledger once per process. ledgerctl never migrates
// implicitly; use the migrate command.
func (r *Runner) open(ctx context.Context) (*application.App, error) {
	if r.app != nil {
		return r.app, nil
	}
	app, err := application.Open(ctx, r.config, application.Options{SkipMigrate: true})
	if err != nil {
		return nil, err
	}
	r.app = app
	return app, nil
}

// pool returns the database pool, failing on the memory driver.
func (r *Runner) pool(ctx context.Context) (*application.App, error) {
	if !r.config.UsesPostgres() {
		return nil, errNeedsPostgres
	}
	return r.open(ctx)
}

// Close releases the ledger connection.
func (r *Runner) Close() {
	if r.app != nil {
		r.app.Close()
		r.app = nil
	}
}

func (r *Runner) writeJSON(data any) error {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := fmt.Fprintln(r.output, string(output)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
