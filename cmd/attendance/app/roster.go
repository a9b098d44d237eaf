package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/seed"
)

// =============================================================================
// STUDENTS
// =============================================================================

// NewStudentsCommand creates the students command group.
func (a *App) NewStudentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "students",
		Aliases: []string{"alunos"},
		Short:   "Manage the student roster",
	}
	cmd.AddCommand(a.studentsListCommand(), a.studentsCountCommand(), a.studentsAddCommand(),
		a.studentsUpdateCommand(), a.studentsDeleteCommand())
	return cmd
}

func (a *App) studentsListCommand() *cobra.Command {
	var section string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List students by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.Store()
			if err != nil {
				return err
			}
			students, err := st.ListStudents(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MATRÍCULA\tNOME\tTURMA")
			for _, s := range students {
				if section != "" && s.Section != section {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.RegistrationID, s.FullName, s.Section)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "only this section")
	return cmd
}

func (a *App) studentsCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.Store()
			if err != nil {
				return err
			}
			n, err := st.CountStudents(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd, "%d\n", n)
			return nil
		},
	}
}

func (a *App) studentsAddCommand() *cobra.Command {
	var s attendance.Student
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a student",
		Example: `  attendance students add --id 20231234 --name "ANA CLARA SOUZA" --section 1A`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s = seed.TrimStudent(s)
			if err := seed.ValidateStudent(s); err != nil {
				return err
			}
			st, err := a.Store()
			if err != nil {
				return err
			}
			if err := st.CreateStudent(cmd.Context(), s); err != nil {
				return err
			}
			printf(cmd, "added %s %s (%s)\n", s.RegistrationID, s.FullName, s.Section)
			return nil
		},
	}
	cmd.Flags().StringVar(&s.RegistrationID, "id", "", "registration id (matrícula)")
	cmd.Flags().StringVar(&s.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&s.Section, "section", "", "section (turma)")
	return cmd
}

func (a *App) studentsUpdateCommand() *cobra.Command {
	var name, section string
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a student's name or section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.Store()
			if err != nil {
				return err
			}
			s, err := st.GetStudent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if s == nil {
				return fmt.Errorf("%w: %s", attendance.ErrStudentNotFound, args[0])
			}
			if cmd.Flags().Changed("name") {
				s.FullName = name
			}
			if cmd.Flags().Changed("section") {
				s.Section = section
			}
			updated := seed.TrimStudent(*s)
			if err := seed.ValidateStudent(updated); err != nil {
				return err
			}
			if err := st.UpdateStudent(cmd.Context(), updated); err != nil {
				return err
			}
			printf(cmd, "updated %s\n", updated.RegistrationID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new full name")
	cmd.Flags().StringVar(&section, "section", "", "new section")
	return cmd
}

func (a *App) studentsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.Store()
			if err != nil {
				return err
			}
			if err := st.DeleteStudent(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd, "deleted %s\n", args[0])
			return nil
		},
	}
}

// =============================================================================
// PERIODS
// =============================================================================

// NewPeriodsCommand creates the periods command group.
func (a *App) NewPeriodsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "periods",
		Aliases: []string{"horarios"},
		Short:   "Manage the weekly class schedule",
		Long: `Manage class periods. Weekdays use the stored labels:
` + strings.Join(attendance.WeekdayLabels(), ", ") + `.
Times are HH:MM.`,
	}
	cmd.AddCommand(a.periodsListCommand(), a.periodsCountCommand(), a.periodsAddCommand(),
		a.periodsUpdateCommand(), a.periodsDeleteCommand())
	return cmd
}

func (a *App) periodsListCommand() *cobra.Command {
	var section string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List periods by section, weekday and start",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.Store()
			if err != nil {
				return err
			}
			periods, err := st.ListPeriods(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTURMA\tDIA\tINÍCIO\tFIM\tDISCIPLINA")
			for _, p := range periods {
				if section != "" && p.Section != section {
					continue
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Section, p.Weekday, p.Start.HHMM(), p.End.HHMM(), p.Subject)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "only this section")
	return cmd
}

func (a *App) periodsCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of periods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.Store()
			if err != nil {
				return err
			}
			n, err := st.CountPeriods(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd, "%d\n", n)
			return nil
		},
	}
}

func bindPeriodFlags(cmd *cobra.Command, f *seed.PeriodInput) {
	cmd.Flags().StringVar(&f.Section, "section", "", "section (turma)")
	cmd.Flags().StringVar(&f.Weekday, "weekday", "", "weekday label, e.g. SEGUNDA-FEIRA")
	cmd.Flags().StringVar(&f.Subject, "subject", "", "subject (disciplina)")
	cmd.Flags().StringVar(&f.Start, "start", "", "start time HH:MM")
	cmd.Flags().StringVar(&f.End, "end", "", "end time HH:MM")
}

func (a *App) periodsAddCommand() *cobra.Command {
	var f seed.PeriodInput
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a period",
		Example: `  attendance periods add --section 1A --weekday SEGUNDA-FEIRA --subject MATEMÁTICA --start 07:00 --end 07:50`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := f.Period(0)
			if err != nil {
				return err
			}
			st, err := a.Store()
			if err != nil {
				return err
			}
			if err := st.CreatePeriod(cmd.Context(), &p); err != nil {
				return err
			}
			printf(cmd, "added period %d: %s\n", p.ID, p)
			return nil
		},
	}
	bindPeriodFlags(cmd, &f)
	return cmd
}

func (a *App) periodsUpdateCommand() *cobra.Command {
	var f seed.PeriodInput
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change fields of a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid period id %q", args[0])
			}
			st, err := a.Store()
			if err != nil {
				return err
			}
			cur, err := st.GetPeriod(cmd.Context(), id)
			if err != nil {
				return err
			}
			if cur == nil {
				return fmt.Errorf("%w: %d", attendance.ErrPeriodNotFound, id)
			}

			// unchanged flags keep the stored value
			merged := seed.InputOf(*cur)
			set := cmd.Flags().Changed
			if set("section") {
				merged.Section = f.Section
			}
			if set("weekday") {
				merged.Weekday = f.Weekday
			}
			if set("subject") {
				merged.Subject = f.Subject
			}
			if set("start") {
				merged.Start = f.Start
			}
			if set("end") {
				merged.End = f.End
			}

			p, err := merged.Period(id)
			if err != nil {
				return err
			}
			if err := st.UpdatePeriod(cmd.Context(), p); err != nil {
				return err
			}
			printf(cmd, "updated period %d: %s\n", p.ID, p)
			return nil
		},
	}
	bindPeriodFlags(cmd, &f)
	return cmd
}

func (a *App) periodsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid period id %q", args[0])
			}
			st, err := a.Store()
			if err != nil {
				return err
			}
			if err := st.DeletePeriod(cmd.Context(), id); err != nil {
				return err
			}
			printf(cmd, "deleted period %d\n", id)
			return nil
		},
	}
}

// =============================================================================
// ROSTER IMPORT
// =============================================================================

// NewRosterCommand creates the roster command group.
func (a *App) NewRosterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Bulk roster operations",
	}

	var replace bool
	importCmd := &cobra.Command{
		Use:   "import FILE.yaml",
		Short: "Load students and periods from a YAML file",
		Long: `Import students and periods in one transaction. Students are upserted
by registration id; periods already present are skipped. With --replace
both tables are emptied first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roster, err := seed.Load(args[0])
			if err != nil {
				return err
			}
			st, err := a.Store()
			if err != nil {
				return err
			}
			stats, err := st.ImportRoster(cmd.Context(), roster, replace)
			if err != nil {
				return err
			}
			a.logger.Info().Int("students", stats.Students).Int("periods", stats.Periods).
				Int("skipped", stats.Skipped).Bool("replace", replace).Msg("roster imported")
			printf(cmd, "imported %d students, %d periods (%d already present)\n",
				stats.Students, stats.Periods, stats.Skipped)
			return nil
		},
	}
	importCmd.Flags().BoolVar(&replace, "replace", false, "delete the current roster first")

	exportCmd := &cobra.Command{
		Use:   "export [FILE.yaml]",
		Short: "Write the current roster in the import format",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.Store()
			if err != nil {
				return err
			}
			roster, err := st.LoadRoster(cmd.Context())
			if err != nil {
				return err
			}
			data, err := seed.Encode(roster)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(args[0], data, 0o644); err != nil {
				return fmt.Errorf("write roster file: %w", err)
			}
			printf(cmd, "exported %d students, %d periods to %s\n", len(roster.Students), len(roster.Periods), args[0])
			return nil
		},
	}

	var confirmed bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every student, period and recorded run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return fmt.Errorf("reset deletes the whole roster and run history; pass --yes to confirm")
			}
			st, err := a.Store()
			if err != nil {
				return err
			}
			if err := st.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("reset database: %w", err)
			}
			a.logger.Warn().Msg("roster and run history deleted")
			printf(cmd, "database reset\n")
			return nil
		},
	}
	resetCmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the reset")

	cmd.AddCommand(importCmd, exportCmd, resetCmd)
	return cmd
}
