// Package main implements the reconcile CLI: it reconciles a housing
// spreadsheet export against the document store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/housing-reconciler/internal/common"
	repo "github.com/joseph-ayodele/housing-reconciler/internal/repository"
	"github.com/joseph-ayodele/housing-reconciler/internal/services/reconcile"
)

var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile housing spreadsheets against the document store",
	Long:  "reconcile converges the employees, properties and invoices collections onto an authoritative spreadsheet export, in size-bounded atomic batches with a run log per run.",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		slog.SetDefault(newLogger(logJSON))
	},
	SilenceUsage: true,
}

var logJSON bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit JSON logs on stderr")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(jsonOut bool) *slog.Logger {
	if jsonOut {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	// messages with variables but no time/level
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// openStore loads and validates the environment config and opens the store.
func openStore(ctx context.Context, logger *slog.Logger) (*common.Config, repo.Store, error) {
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	store, err := repo.OpenStore(ctx, cfg.Store, clockwork.NewRealClock(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return cfg, store, nil
}

func engineConfig(cfg *common.Config) reconcile.Config {
	ec := reconcile.DefaultConfig()
	ec.LockTTL = cfg.Reconcile.LockTTL
	return ec
}
