package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keystone-estates/ingest-cli/internal/pipeline"
	"github.com/keystone-estates/ingest-cli/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the imports directory and ingest drops as they land",
	Long:  "Runs until interrupted. New files in the imports directory settle briefly, then go through the same staged commit as a batch ingest: property match by filename, extraction, classification, and vault archive.",
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

		w, err := watch.New(cfg.Watch, ing.IngestDrop)
		if err != nil {
			return err
		}

		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		zap.L().Info("watch stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
