// Package app holds the attendance CLI: configuration, logging and the
// lazily opened roster store shared by every command.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/logging"
	"github.com/warp/attendance-engine/report"
	"github.com/warp/attendance-engine/store/sqlite"
)

// App carries what commands share between setup and execution.
type App struct {
	version string

	// set by flags before setupCommand runs
	configFile string

	config *config.Config
	logger zerolog.Logger

	out       io.Writer
	logWriter io.Writer

	mu       sync.Mutex
	store    *sqlite.Store
	storeKey string
}

// Option customizes an App; used by tests.
type Option func(*App)

// WithOutput sends command output to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithLogWriter sends log lines to w instead of stderr.
func WithLogWriter(w io.Writer) Option {
	return func(a *App) { a.logWriter = w }
}

// New creates the application. Configuration is loaded per command, once
// flags are parsed.
func New(version string, opts ...Option) *App {
	a := &App{
		version: version,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	cfg := logging.DefaultConfig()
	cfg.Writer = a.logWriter
	a.logger = logging.New(cfg)
	return a
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return &a.logger
}

// Config returns the configuration loaded for the running command.
func (a *App) Config() *config.Config {
	return a.config
}

// Store opens the configured database on first use. A later command with
// a different DSN gets a fresh connection.
func (a *App) Store() (*sqlite.Store, error) {
	if a.config == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	key := a.config.DB.Driver + " " + a.config.DB.DSN
	if a.store != nil && a.storeKey == key {
		return a.store, nil
	}
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}

	st, err := openStore(a.config.DB)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Str("driver", a.config.DB.Driver).Msg("database opened")
	a.store, a.storeKey = st, key
	return st, nil
}

func openStore(db config.DBConfig) (*sqlite.Store, error) {
	if db.Driver != sqlite.DriverSQLite {
		return sqlite.Open(db.Driver, db.DSN)
	}
	if !strings.HasPrefix(db.DSN, ":memory:") && !strings.HasPrefix(db.DSN, "file:") {
		if dir := filepath.Dir(db.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}
	return sqlite.New(db.DSN)
}

// Reports builds a workbook writer from the reports settings.
func (a *App) Reports() *report.Writer {
	w := report.NewWriter(a.config.Reports.Dir, logging.LineLogger(a.logger))
	w.DetailedFile = a.config.Reports.DetailedFile
	w.SimplePrefix = a.config.Reports.SimplePrefix
	return w
}

// Close releases the database connection, if one was opened.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// rosterHealth logs how much reference data is loaded; an empty roster
// makes every run fail.
func (a *App) rosterHealth(ctx context.Context, st *sqlite.Store) {
	students, err := st.CountStudents(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("count students")
		return
	}
	periods, err := st.CountPeriods(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("count periods")
		return
	}
	ev := a.logger.Info()
	if students == 0 || periods == 0 {
		ev = a.logger.Warn()
	}
	ev.Int("students", students).Int("periods", periods).Msg("roster loaded")
}

// ContextWithSignals returns a context cancelled on SIGINT or SIGTERM.
func ContextWithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// ExitOnError prints err and exits with status 1. Nil is a no-op.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
