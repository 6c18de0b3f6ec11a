package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/housing-reconciler/constants"
	"github.com/joseph-ayodele/housing-reconciler/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a collection to an .xlsx file",
	Long:  "Exports every document of a collection in the column layout the reconciler reads, so the file can be edited and reconciled back.",
	RunE:  runExport,
}

var (
	exportCollection string
	exportOut        string
)

func init() {
	exportCmd.Flags().StringVarP(&exportCollection, "collection", "c", "", "Collection to export (employees, properties, invoices)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output .xlsx path")
	_ = exportCmd.MarkFlagRequired("collection")
	_ = exportCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	collection, ok := constants.ParseCollection(exportCollection)
	if !ok {
		return fmt.Errorf("unknown collection %q (want one of %v)", exportCollection, constants.AsStringSlice())
	}

	_, store, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	b, err := export.NewService(store, nil, logger).ExportXLSX(ctx, collection)
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportOut, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOut, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", exportOut, len(b))
	return nil
}
