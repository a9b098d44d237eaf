package app

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/attendance-engine/attendance"
)

// NewRunsCommand creates the runs command group.
func (a *App) NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Reconciliation run history",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be positive")
			}
			st, err := a.Store()
			if err != nil {
				return err
			}
			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tDATE\tABSENTEES\tANOMALIES\tWARNINGS\tERROR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					shortID(r.ID), r.StartedAt.Local().Format(time.DateTime), r.Status, reportDate(r),
					r.Absentees, r.Anomalies, r.Warnings, r.Error)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum runs to show")

	cmd.AddCommand(list)
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func reportDate(r attendance.Run) string {
	if r.ReportDate.IsZero() {
		return "-"
	}
	return attendance.DateLabel(r.ReportDate)
}
