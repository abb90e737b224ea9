package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rendis/placetap/internal/engine/storage"
)

var runsDB string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the scans recorded in a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runsDB == "" {
			return fmt.Errorf("--db is required")
		}
		store, err := storage.NewStore(runsDB)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		runs, err := store.Runs()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tQUERY\tSTATE\tFOUND\tPASSES\tCALLS\tCOST\tSTARTED")
		for _, r := range runs {
			state := r.State
			if state == "" {
				state = "unfinished"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t$%.4f\t%s\n",
				r.ID[:8], r.Config.Query, state, r.Found, r.Passes,
				humanize.Comma(r.APICalls), r.CostUSD, humanize.Time(r.StartedAt))
		}
		return tw.Flush()
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsDB, "db", "", "path to project .db file (required)")
}
