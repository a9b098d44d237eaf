// Package config loads attendance engine settings.
//
// Precedence, highest first:
//  1. command-line flags
//  2. ATTENDANCE_* environment variables (ATTENDANCE_DB_DSN for db.dsn)
//  3. .env and .env.local files
//  4. attendance.yaml (current directory, or --config)
//  5. defaults
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "ATTENDANCE"
	DefaultConfigName = "attendance"
)

// Config holds the application configuration.
type Config struct {
	DB      DBConfig      `mapstructure:"db"`
	Reports ReportsConfig `mapstructure:"reports"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`

	// File is the config file actually read, empty if none.
	File string `mapstructure:"-"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite3 pgx"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

type ReportsConfig struct {
	Dir          string `mapstructure:"dir" validate:"required"`
	DetailedFile string `mapstructure:"detailed_file" validate:"required,endswith=.xlsx"`
	SimplePrefix string `mapstructure:"simple_prefix" validate:"required"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr" validate:"required"`
	Workers        int      `mapstructure:"workers" validate:"min=1,max=64"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error off"`
	Format string `mapstructure:"format" validate:"oneof=auto console json"`
}

// DetailedPath is where the multi-day workbook lives.
func (c *Config) DetailedPath() string {
	return filepath.Join(c.Reports.Dir, c.Reports.DetailedFile)
}

// Options controls where Load looks.
type Options struct {
	// ConfigFile is an explicit file; empty searches for attendance.yaml.
	ConfigFile string
	// SearchPaths are directories searched when ConfigFile is empty.
	SearchPaths []string
	// EnvFiles are loaded before reading the environment. Missing files are
	// ignored. Nil means .env then .env.local.
	EnvFiles []string
	// Flags, when set, override every other source for the keys in FlagKeys.
	Flags *pflag.FlagSet
}

// FlagKeys maps CLI flag names to configuration keys.
var FlagKeys = map[string]string{
	"db-driver":   "db.driver",
	"db":          "db.dsn",
	"reports-dir": "reports.dir",
	"addr":        "server.addr",
	"workers":     "server.workers",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.dsn", "db/attendance.db")
	v.SetDefault("reports.dir", "relatorios")
	v.SetDefault("reports.detailed_file", "relatorio_faltas_detalhado.xlsx")
	v.SetDefault("reports.simple_prefix", "relatorio_frequencia_")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.workers", 2)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
}

// Load reads configuration from every source and validates it.
func Load(opts Options) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env", ".env.local"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables already set
		_ = godotenv.Load(f)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		paths := opts.SearchPaths
		if len(paths) == 0 {
			paths = []string{"."}
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
