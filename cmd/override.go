package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keystone-estates/ingest-cli/internal/taxonomy"
)

var overrideComment string

var overrideCmd = &cobra.Command{
	Use:   "override <file-path> <bucket>",
	Short: "Pin a file's classification",
	Long:  "Records a manual classification override for a source or vault path. Overrides take precedence over rule-based classification on every future ingest and reconcile pass.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath, bucket := args[0], args[1]
		if !taxonomy.Valid(bucket) {
			names := make([]string, 0, len(taxonomy.Buckets()))
			for _, b := range taxonomy.Buckets() {
				names = append(names, string(b))
			}
			return eris.Errorf("unknown bucket %q (valid: %s)", bucket, strings.Join(names, ", "))
		}

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

		if err := st.UpsertOverride(ctx, filePath, bucket, overrideComment); err != nil {
			return err
		}

		zap.L().Info("override recorded",
			zap.String("file_path", filePath),
			zap.String("bucket", bucket))
		return nil
	},
}

func init() {
	overrideCmd.Flags().StringVar(&overrideComment, "comment", "", "reason for the override")
	rootCmd.AddCommand(overrideCmd)
}
