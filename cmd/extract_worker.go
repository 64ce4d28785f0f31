package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/keystone-estates/ingest-cli/internal/extract"
)

// extractWorkerCmd is the isolated extraction process. The parent ingest
// process execs it per document so a crashing external tool never takes
// the run down. It writes exactly one JSON message to stdout; extraction
// failures are reported inside the message, not via the exit code.
var extractWorkerCmd = &cobra.Command{
	Use:    "extract-worker <file-path>",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, extractErr := extract.NewLocal(cfg.Extract).Extract(cmd.Context(), args[0])

		out, err := extract.EncodeWorkerResult(result, extractErr)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(out, '\n'))
		return err
	},
}

func init() {
	rootCmd.AddCommand(extractWorkerCmd)
}
