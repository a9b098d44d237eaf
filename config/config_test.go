package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/config"
)

// isolated keeps tests from reading the developer's .env or attendance.yaml.
func isolated(t *testing.T) config.Options {
	dir := t.TempDir()
	return config.Options{SearchPaths: []string{dir}, EnvFiles: []string{}}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(isolated(t))
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.DB.Driver)
	assert.Equal(t, "db/attendance.db", cfg.DB.DSN)
	assert.Equal(t, filepath.Join("relatorios", "relatorio_faltas_detalhado.xlsx"), cfg.DetailedPath())
	assert.Equal(t, 2, cfg.Server.Workers)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Empty(t, cfg.File)
}

func TestLoad_FileThenEnvThenFlags(t *testing.T) {
	// GIVEN: A config file, an env var and a flag all setting values
	// WHEN: Loading
	// THEN: Flags beat env, env beats file, file beats defaults

	opts := isolated(t)
	path := filepath.Join(opts.SearchPaths[0], "attendance.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db:
  dsn: from-file.db
server:
  addr: ":9000"
  workers: 4
log:
  level: debug
`), 0o600))

	t.Setenv("ATTENDANCE_SERVER_ADDR", ":9100")
	t.Setenv("ATTENDANCE_LOG_LEVEL", "WARN")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 0, "")
	require.NoError(t, flags.Parse([]string{"--workers=8"}))
	opts.Flags = flags

	cfg, err := config.Load(opts)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "from-file.db", cfg.DB.DSN)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Server.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_EnvFile(t *testing.T) {
	opts := isolated(t)
	envFile := filepath.Join(opts.SearchPaths[0], ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ATTENDANCE_REPORTS_DIR=/tmp/out\n"), 0o600))
	opts.EnvFiles = []string{envFile}
	t.Cleanup(func() { os.Unsetenv("ATTENDANCE_REPORTS_DIR") })

	cfg, err := config.Load(opts)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", cfg.Reports.Dir)
}

func TestLoad_InvalidDriver(t *testing.T) {
	t.Setenv("ATTENDANCE_DB_DRIVER", "mysql")

	_, err := config.Load(isolated(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Driver")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	opts := isolated(t)
	opts.ConfigFile = filepath.Join(opts.SearchPaths[0], "nope.yaml")

	_, err := config.Load(opts)
	assert.Error(t, err)
}
