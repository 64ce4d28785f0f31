package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keystone-estates/ingest-cli/internal/config"
	"github.com/keystone-estates/ingest-cli/internal/extract"
	"github.com/keystone-estates/ingest-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ingest-cli",
	Short: "Property document ingestion pipeline",
	Long:  "Discovers property documents across folder trees, mailbox stores, and metadata exports, extracts structured facts, classifies them into the vault taxonomy, and commits them with full idempotence and auditability.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// newExtractor builds the retry-wrapped worker extractor used by every
// ingesting command.
func newExtractor() (extract.Extractor, error) {
	worker, err := extract.NewWorker(cfg.Extract)
	if err != nil {
		return nil, err
	}
	return extract.NewRetrying(worker, cfg.Extract), nil
}

// newStore opens the configured store driver.
func newStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
