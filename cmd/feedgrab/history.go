package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwygoda/feedgrab/internal/domain"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent sync runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.svc.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}
		printHistory(cmd.OutOrStdout(), runs)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
}

func printHistory(out io.Writer, runs []domain.Run) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROFILE\tSTATUS\tSTARTED\tTOOK\tDOWNLOADED")
	for _, r := range runs {
		took := "-"
		if r.Finished() && !r.FinishedAt.IsZero() {
			took = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		var ok, attempted int
		for _, c := range r.Categories {
			ok += c.Succeeded
			attempted += c.Attempted
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d\n",
			r.ID, r.Profile, r.Status, r.StartedAt.Format(time.DateTime), took, ok, attempted)
	}
	tw.Flush()
}
