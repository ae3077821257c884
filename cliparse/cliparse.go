// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBind is the backend address when IBIS_BIND is unset
const DefaultBind = "127.0.0.1:8081"

var (
	ErrDatabaseURLRequired = errors.New("database URL required (use -d or DATABASE_URL env)")
	ErrInvalidProtocol     = errors.New("protocol must be http or https")
	ErrInvalidSteps        = errors.New("migration steps must be at least 1")
)

type Config struct {
	Bind         string `env:"IBIS_BIND" envDefault:"127.0.0.1:8081"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseType string `env:"DATABASE_TYPE" envDefault:"sqlite"`
	// Domain other instances know this one by; defaults to Bind
	Domain     string `env:"IBIS_DOMAIN"`
	Protocol   string `env:"IBIS_PROTOCOL" envDefault:"http"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	ConfigFile string `env:"IBIS_CONFIG"`
	Options    Options
}

// Options are instance settings read from the YAML config file
type Options struct {
	RegistrationOpen bool `yaml:"registration_open"`
	// New articles stay hidden until an admin approves them
	ArticleApproval bool  `yaml:"article_approval"`
	Setup           Setup `yaml:"setup"`
}

// Setup is used once, when the database has no local instance yet
type Setup struct {
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
}

func defaultOptions() Options {
	return Options{
		RegistrationOpen: true,
		Setup: Setup{
			AdminUsername: "ibis",
			AdminPassword: "ibis",
		},
	}
}

// LoadDotEnv reads a .env file in the working directory if there is one.
// Variables already set in the environment win.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// ParseFlags reads the server configuration. Flags override environment
// variables, which override defaults.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("ibis", flag.ContinueOnError)
	fs.StringVar(&cfg.Bind, "b", cfg.Bind, "Bind address (host:port)")
	fs.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", cfg.DatabaseType, "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.Domain, "domain", cfg.Domain, "Public domain of this instance")
	fs.StringVar(&cfg.Protocol, "protocol", cfg.Protocol, "Public protocol (http or https)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.ConfigFile, "c", cfg.ConfigFile, "YAML options file")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, ErrDatabaseURLRequired
	}
	if cfg.Domain == "" {
		cfg.Domain = cfg.Bind
	}
	if cfg.Protocol != "http" && cfg.Protocol != "https" {
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidProtocol, cfg.Protocol)
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}

	opts, err := LoadOptions(cfg.ConfigFile)
	if err != nil {
		return Config{}, err
	}
	cfg.Options = opts

	return cfg, nil
}

// LoadOptions reads the YAML options file. An empty path yields defaults.
func LoadOptions(path string) (Options, error) {
	opts := defaultOptions()
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return opts, nil
}

// ParseLogLevel maps a level name to its slog level
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// MigrateConfig selects the database for the migrate commands
type MigrateConfig struct {
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseType string `env:"DATABASE_TYPE" envDefault:"sqlite"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	// Steps is how many migrations "migrate down" rolls back
	Steps int
}

// ParseMigrateFlags reads the migrate configuration from env and flags
func ParseMigrateFlags(args []string) (MigrateConfig, error) {
	var cfg MigrateConfig
	if err := env.Parse(&cfg); err != nil {
		return MigrateConfig{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("ibis migrate", flag.ContinueOnError)
	fs.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", cfg.DatabaseType, "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.IntVar(&cfg.Steps, "n", 1, "Number of migrations to roll back")

	if err := fs.Parse(args); err != nil {
		return MigrateConfig{}, err
	}

	if cfg.DatabaseURL == "" {
		return MigrateConfig{}, ErrDatabaseURLRequired
	}
	if cfg.Steps < 1 {
		return MigrateConfig{}, fmt.Errorf("%w: %d", ErrInvalidSteps, cfg.Steps)
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return MigrateConfig{}, err
	}
	return cfg, nil
}

// DevConfig configures the development runner
type DevConfig struct {
	Bind            string        `env:"IBIS_BIND" envDefault:"127.0.0.1:8081"`
	FrontendCommand string        `env:"IBIS_DEV_FRONTEND" envDefault:"trunk serve -w assets -w src --proxy-backend http://{bind}"`
	BackendCommand  string        `env:"IBIS_DEV_BACKEND" envDefault:"go run . serve"`
	StaleProcess    string        `env:"IBIS_DEV_STALE_PROCESS" envDefault:"trunk"`
	WatchDirs       []string      `env:"IBIS_DEV_WATCH" envDefault:"." envSeparator:","`
	Include         []string      `env:"IBIS_DEV_INCLUDE" envDefault:"**/*.go,**/*.sql,go.mod" envSeparator:","`
	Exclude         []string      `env:"IBIS_DEV_EXCLUDE" envDefault:"**/*_test.go,**/_*/**" envSeparator:","`
	Debounce        time.Duration `env:"IBIS_DEV_DEBOUNCE" envDefault:"300ms"`
	StopTimeout     time.Duration `env:"IBIS_DEV_STOP_TIMEOUT" envDefault:"5s"`
}

// ParseDevFlags reads the dev runner configuration from env and flags
func ParseDevFlags(args []string) (DevConfig, error) {
	var cfg DevConfig
	if err := env.Parse(&cfg); err != nil {
		return DevConfig{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("ibis dev", flag.ContinueOnError)
	fs.StringVar(&cfg.Bind, "b", cfg.Bind, "Backend bind address")
	fs.StringVar(&cfg.FrontendCommand, "frontend", cfg.FrontendCommand, "Frontend watch-and-serve command")
	fs.StringVar(&cfg.BackendCommand, "backend", cfg.BackendCommand, "Backend command, restarted on change")
	fs.StringVar(&cfg.StaleProcess, "stale", cfg.StaleProcess, "Process name to kill before starting")
	fs.DurationVar(&cfg.Debounce, "debounce", cfg.Debounce, "Quiet period before a restart")
	fs.DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "Grace period before SIGKILL")
	watch := fs.String("watch", strings.Join(cfg.WatchDirs, ","), "Comma separated directories to watch")

	if err := fs.Parse(args); err != nil {
		return DevConfig{}, err
	}
	cfg.WatchDirs = splitList(*watch)

	if cfg.Bind == "" {
		cfg.Bind = DefaultBind
	}
	if cfg.BackendCommand == "" {
		return DevConfig{}, errors.New("backend command required")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
