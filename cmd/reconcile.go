package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keystone-estates/ingest-cli/internal/pipeline"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Audit and repair vault placement",
	Long:  "Re-classifies every committed document against the current taxonomy rules and manual overrides, moving files whose bucket no longer matches. Documents in revenue-sensitive buckets get a second extraction pass before moving.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		extractor, err := newExtractor()
		if err != nil {
			return err
		}
		ing := pipeline.New(cfg, st, extractor, nil)

		if err := ing.Reconcile(ctx); err != nil {
			return err
		}

		zap.L().Info("reconciliation complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
