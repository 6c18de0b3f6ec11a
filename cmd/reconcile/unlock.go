package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/housing-reconciler/constants"
	repo "github.com/joseph-ayodele/housing-reconciler/internal/repository"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Clear the run lock of a collection",
	Long:  "Removes the run lock left behind by a run that died before releasing it. Only use it when no run is in progress; stale locks older than RECONCILE_LOCK_TTL are also taken over automatically.",
	RunE:  runUnlock,
}

var unlockCollection string

func init() {
	unlockCmd.Flags().StringVarP(&unlockCollection, "collection", "c", "", "Collection to unlock (employees, properties, invoices)")
	_ = unlockCmd.MarkFlagRequired("collection")

	rootCmd.AddCommand(unlockCmd)
}

func runUnlock(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	collection, ok := constants.ParseCollection(unlockCollection)
	if !ok {
		return fmt.Errorf("unknown collection %q (want one of %v)", unlockCollection, constants.AsStringSlice())
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

	locker, ok := store.(repo.Locker)
	if !ok {
		return fmt.Errorf("store does not support run locks")
	}
	if err := locker.Unlock(ctx, string(collection)); err != nil {
		return fmt.Errorf("unlock %s: %w", collection, err)
	}
	logger.Info("unlock.ok", "collection", collection)
	fmt.Fprintf(cmd.OutOrStdout(), "unlocked %s\n", collection)
	return nil
}
