package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusEvents int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-property ingestion activity",
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

		activity, err := st.ListActivity(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROPERTY\tSTATUS\tFILES\tEVENTS")
		for _, a := range activity {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", a.Property.Name, a.Property.Status, a.Checkpoints, a.Events)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if statusEvents <= 0 {
			return nil
		}
		events, err := st.ListRecentEvents(ctx, statusEvents)
		if err != nil {
			return err
		}
		fmt.Println()
		ew := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(ew, "DATE\tTYPE\tDESCRIPTION")
		for _, e := range events {
			fmt.Fprintf(ew, "%s\t%s\t%s\n", e.EventDate, e.Kind, e.Description)
		}
		return ew.Flush()
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusEvents, "events", 0, "also list the N most recent pipeline events")
	rootCmd.AddCommand(statusCmd)
}
