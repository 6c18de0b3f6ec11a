package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/housing-reconciler/internal/audit"
	"github.com/joseph-ayodele/housing-reconciler/internal/ingest"
	"github.com/joseph-ayodele/housing-reconciler/internal/services/reconcile"
	"github.com/joseph-ayodele/housing-reconciler/internal/spreadsheet"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile every collection exported into an inbox directory",
	Long:  "Discovers files named after their collection (properties_*.xlsx, employees_*.xlsx, invoices_*.csv, ...) and reconciles them properties first. Stops at the first failed run.",
	RunE:  runSync,
}

var (
	syncDir        string
	syncDryRun     bool
	syncSkipHidden bool
)

func init() {
	syncCmd.Flags().StringVarP(&syncDir, "dir", "d", "", "Inbox directory to scan")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Plan and report without writing to the store")
	syncCmd.Flags().BoolVar(&syncSkipHidden, "skip-hidden", true, "Skip hidden files and directories")
	_ = syncCmd.MarkFlagRequired("dir")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	inputs, results, stats, err := ingest.Discover(syncDir, syncSkipHidden)
	if err != nil {
		return err
	}
	for _, r := range results {
		logger.Warn("sync.file.ignored", "path", r.Path, "reason", r.Err)
	}
	logger.Info("sync.discover.ok", "dir", syncDir, "scanned", stats.Scanned, "matched", stats.Matched, "inputs", len(inputs))
	if len(inputs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to reconcile")
		return nil
	}

	// read every input before connecting so bad files fail the sync up front
	reqs := make([]reconcile.RunRequest, 0, len(inputs))
	tables := make([]*spreadsheet.Table, 0, len(inputs))
	for _, in := range inputs {
		req := reconcile.RunRequest{Collection: in.Collection, InputPath: in.Path, DryRun: syncDryRun}
		table, err := reconcile.ReadInput(req, nil)
		if err != nil {
			return fmt.Errorf("%s: %w", in.Path, err)
		}
		reqs = append(reqs, req)
		tables = append(tables, table)
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

	for i, req := range reqs {
		report, err := engine.Reconcile(ctx, req.Collection, tables[i], req.DryRun)
		if report != nil {
			fmt.Fprint(cmd.OutOrStdout(), report.Summary())
		}
		if err != nil {
			return fmt.Errorf("%s: %w", req.InputPath, err)
		}
	}
	return nil
}
