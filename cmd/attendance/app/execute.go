package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/logging"
)

// Execute runs the CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "attendance",
		Short:   "Daily attendance reconciliation",
		Version: a.version,
		Long: `attendance reconciles the school's daily absence roster with the
badge access log and writes the absence workbooks.

Each run reads two PDFs for the same day, matches every record to the
roster of students and class periods, and reports who was absent, who
arrived late and who left early. Missed periods are tallied per subject.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	rootCmd.SetOut(a.out)

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "roster", Title: "Roster Commands:"})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default ./attendance.yaml)")
	flags.String("db", "", "database path, or DSN for --db-driver=pgx")
	flags.String("db-driver", "", "database driver: sqlite3 or pgx")
	flags.String("reports-dir", "", "directory for the xlsx reports")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "", "log format: auto, console, json")

	rootCmd.SetVersionTemplate("attendance {{.Version}}\n")

	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand loads configuration once flags are parsed and rebuilds the
// logger from it.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.Options{
		ConfigFile: a.configFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}
	a.config = cfg

	a.logger = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: "stderr",
		Writer: a.logWriter,
	})
	if cfg.File != "" {
		a.logger.Debug().Str("file", cfg.File).Msg("config loaded")
	}
	return nil
}

func (a *App) registerCommands(rootCmd *cobra.Command) {
	for _, c := range []*cobra.Command{a.NewReconcileCommand(), a.NewServeCommand(), a.NewRunsCommand()} {
		c.GroupID = "core"
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{a.NewStudentsCommand(), a.NewPeriodsCommand(), a.NewRosterCommand()} {
		c.GroupID = "roster"
		rootCmd.AddCommand(c)
	}
}

// printf writes command output; write errors are not actionable here.
func printf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
