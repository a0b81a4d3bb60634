// Command ledgerctl inspects and maintains the import ledger from a shell:
// schema migrations, import listings, progress polls, retention purges and
// a job listener for debugging dispatch.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/importledger/internal/config"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", "err", err)
	}

	runner := NewRunner(RunnerOpts{Config: cfg, Logger: logger})
	defer runner.Close()

	app := &cli.Command{
		Name:     "ledgerctl",
		Usage:    "Inspect and maintain the import ledger",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		runner.Close()
		logger.Fatal("command failed", "err", err)
	}
}
