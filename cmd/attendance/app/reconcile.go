package app

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/logging"
	"github.com/warp/attendance-engine/pipeline"
)

// NewReconcileCommand creates the reconcile command.
func (a *App) NewReconcileCommand() *cobra.Command {
	var (
		absences  []string
		accesses  []string
		noReports bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile one or more days of reports",
		Long: `Reconcile pairs of absence-roster and access-log PDFs, one pair per
day, in the order given. Each --absence is paired with the --access at
the same position.

A day that fails is reported and skipped; the others still produce
reports. The detailed workbook is merged with the one already on disk.`,
		Example: `  attendance reconcile --absence faltas_1003.pdf --access acessos_1003.pdf
  attendance reconcile --absence seg.pdf --access seg_acc.pdf --absence ter.pdf --access ter_acc.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(absences) == 0 {
				return fmt.Errorf("at least one --absence/--access pair is required")
			}
			if len(absences) != len(accesses) {
				return fmt.Errorf("got %d --absence and %d --access files; they must pair up", len(absences), len(accesses))
			}

			st, err := a.Store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a.rosterHealth(ctx, st)

			session := attendance.NewSession()
			p := pipeline.New(st, session, logging.LineLogger(a.logger))

			var failures []error
			for i := range absences {
				out, err := p.RunFiles(ctx, absences[i], accesses[i])
				if err != nil {
					a.logger.Error().Err(err).Str("absence", absences[i]).Str("access", accesses[i]).Str("run", out.Run.ID).Msg("reconciliation failed")
					failures = append(failures, fmt.Errorf("%s + %s: %w", absences[i], accesses[i], err))
					if ctx.Err() != nil {
						break
					}
					continue
				}
				if out.Replaced {
					a.logger.Warn().Str("date", out.Result.Label()).Msg("date given twice; the later pair wins")
				}
				printDay(cmd, out.Result)
			}

			if !noReports && session.Len() > 0 {
				if err := a.writeReports(cmd, session); err != nil {
					failures = append(failures, err)
				}
			}
			return errors.Join(failures...)
		},
	}

	cmd.Flags().StringArrayVar(&absences, "absence", nil, "absence-roster PDF (repeatable)")
	cmd.Flags().StringArrayVar(&accesses, "access", nil, "access-log PDF (repeatable)")
	cmd.Flags().BoolVar(&noReports, "no-reports", false, "print results only, write no workbooks")
	return cmd
}

func (a *App) writeReports(cmd *cobra.Command, session *attendance.Session) error {
	w := a.Reports()
	for _, day := range session.Days() {
		path, err := w.WriteSimple(day)
		if err != nil {
			return fmt.Errorf("simple report %s: %w", day.Label(), err)
		}
		if path != "" {
			printf(cmd, "wrote %s\n", path)
		}
	}
	path, err := w.WriteDetailed(session.Days()...)
	if err != nil {
		return fmt.Errorf("detailed report: %w", err)
	}
	printf(cmd, "wrote %s\n", path)
	return nil
}

func printDay(cmd *cobra.Command, r *attendance.DayResult) {
	printf(cmd, "%s (%s): %d anomalies, %d missed periods, %s hours, %d warnings\n",
		r.Label(), attendance.WeekdayOf(r.Date).Title(),
		len(r.Anomalies), r.Tally.Total(), r.Tally.TotalHours().StringFixed(2), len(r.Warnings))
	if len(r.Anomalies) == 0 {
		return
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  TURMA\tMATRÍCULA\tNOME\tPROBLEMA\tDETALHE")
	for _, an := range r.Anomalies {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", an.Section, an.RegistrationID, an.FullName, an.Kind, an.Detail)
	}
	tw.Flush()
}
