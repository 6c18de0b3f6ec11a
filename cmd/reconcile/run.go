package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/housing-reconciler/constants"
	"github.com/joseph-ayodele/housing-reconciler/internal/audit"
	"github.com/joseph-ayodele/housing-reconciler/internal/services/reconcile"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile one collection against a spreadsheet",
	Long:  "Reads the spreadsheet (.xlsx, .xlsm or .csv), plans creates, updates and deletes for the collection and commits them in batches. With --dry-run nothing is written to the store; the run log is still written.",
	RunE:  runReconcile,
}

var (
	runCollection string
	runInput      string
	runDryRun     bool
)

func init() {
	runCmd.Flags().StringVarP(&runCollection, "collection", "c", "", "Collection to reconcile (employees, properties, invoices)")
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "Path to the spreadsheet export")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Plan and report without writing to the store")
	_ = runCmd.MarkFlagRequired("collection")
	_ = runCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(runCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	collection, ok := constants.ParseCollection(runCollection)
	if !ok {
		return fmt.Errorf("unknown collection %q (want one of %v)", runCollection, constants.AsStringSlice())
	}

	req := reconcile.RunRequest{
		Collection: collection,
		InputPath:  runInput,
		DryRun:     runDryRun,
	}
	// bad input fails before any store I/O
	table, err := reconcile.ReadInput(req, nil)
	if err != nil {
		return err
	}

	cfg, store, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	auditLog, err := audit.NewLogger(cfg.Runlog.Dir, logger)
	if err != nil {
		return err
	}
	engine, err := reconcile.NewEngine(store, auditLog, engineConfig(cfg), logger)
	if err != nil {
		return err
	}

	report, runErr := engine.Reconcile(ctx, req.Collection, table, req.DryRun)
	if report != nil {
		fmt.Fprint(cmd.OutOrStdout(), report.Summary())
	}
	return runErr
}
