package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keystone-estates/ingest-cli/internal/model"
	"github.com/keystone-estates/ingest-cli/internal/pipeline"
)

var ingestProgress bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run a full ingestion pass over the source tree",
	Long:  "Walks every property folder under the source root, extracts and classifies each document, archives raw copies into the vault, processes the mailbox store, and syncs the metadata export. Safe to re-run: checkpointed files are skipped.",
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

		var notifier pipeline.Notifier = pipeline.NopNotifier{}
		if ingestProgress {
			notifier = pipeline.NewWriterNotifier(os.Stdout)
		}

		extractor, err := newExtractor()
		if err != nil {
			return err
		}
		ing := pipeline.New(cfg, st, extractor, notifier)

		stats, err := ing.Run(ctx)
		if err != nil {
			notifier.Notify(model.Progress{Type: model.ProgressError, Error: err.Error()})
			return err
		}

		zap.L().Info("ingestion complete",
			zap.Int("properties", stats.PropertiesFound),
			zap.Int("files_copied", stats.FilesCopied),
			zap.Int("emails_processed", stats.EmailsProcessed))
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestProgress, "progress", false, "emit NDJSON progress events on stdout")
	rootCmd.AddCommand(ingestCmd)
}
