// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseFlags_EnvVars(t *testing.T) {
	t.Setenv("IBIS_BIND", "0.0.0.0:9000")
	t.Setenv("DATABASE_URL", "postgres://test")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("IBIS_DOMAIN", "wiki.example.com")
	t.Setenv("IBIS_PROTOCOL", "https")
	t.Setenv("IBIS_CONFIG", "")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Bind != "0.0.0.0:9000" {
		t.Errorf("expected bind 0.0.0.0:9000, got %s", cfg.Bind)
	}
	if cfg.DatabaseURL != "postgres://test" || cfg.DatabaseType != "postgres" {
		t.Errorf("unexpected database settings: %s %s", cfg.DatabaseType, cfg.DatabaseURL)
	}
	if cfg.Domain != "wiki.example.com" || cfg.Protocol != "https" {
		t.Errorf("unexpected public address: %s://%s", cfg.Protocol, cfg.Domain)
	}
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	t.Setenv("IBIS_BIND", "0.0.0.0:9000")
	t.Setenv("IBIS_CONFIG", "")

	cfg, err := ParseFlags([]string{"-b", "127.0.0.1:8080", "-d", "file:test.db", "-t", "sqlite"})
	if err != nil {
		t.Fatal(err)
	}

	// CLI should override env
	if cfg.Bind != "127.0.0.1:8080" {
		t.Errorf("CLI should override env: expected 127.0.0.1:8080, got %s", cfg.Bind)
	}
	if cfg.DatabaseURL != "file:test.db" {
		t.Errorf("expected file:test.db, got %s", cfg.DatabaseURL)
	}
}

func TestParseFlags_DomainDefaultsToBind(t *testing.T) {
	t.Setenv("IBIS_DOMAIN", "")
	t.Setenv("IBIS_CONFIG", "")

	cfg, err := ParseFlags([]string{"-b", "localhost:8131", "-d", "file:test.db"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Domain != "localhost:8131" {
		t.Errorf("expected domain localhost:8131, got %s", cfg.Domain)
	}
}

func TestParseFlags_Validation(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("IBIS_CONFIG", "")

	tests := []struct {
		name string
		args []string
		err  error
	}{
		{"missing database", []string{}, ErrDatabaseURLRequired},
		{"bad protocol", []string{"-d", "file:test.db", "-protocol", "gopher"}, ErrInvalidProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFlags(tt.args)
			if !errors.Is(err, tt.err) {
				t.Errorf("expected %v, got %v", tt.err, err)
			}
		})
	}

	if _, err := ParseFlags([]string{"-d", "file:test.db", "-log-level", "loud"}); err == nil {
		t.Error("expected error for unknown log level")
	}
	if _, err := ParseFlags([]string{"-unknown"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestParseFlags_OptionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`registration_open: false
article_approval: true
setup:
  admin_username: root
  admin_password: hunter22
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseFlags([]string{"-d", "file:test.db", "-c", path})
	if err != nil {
		t.Fatal(err)
	}

	opts := cfg.Options
	if opts.RegistrationOpen || !opts.ArticleApproval {
		t.Errorf("unexpected options: %+v", opts)
	}
	if opts.Setup.AdminUsername != "root" || opts.Setup.AdminPassword != "hunter22" {
		t.Errorf("unexpected setup: %+v", opts.Setup)
	}
}

func TestLoadOptions(t *testing.T) {
	opts, err := LoadOptions("")
	if err != nil {
		t.Fatal(err)
	}
	if !opts.RegistrationOpen || opts.ArticleApproval || opts.Setup.AdminUsername != "ibis" {
		t.Errorf("unexpected defaults: %+v", opts)
	}

	// keys missing from the file keep their defaults
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("article_approval: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	opts, err = LoadOptions(path)
	if err != nil {
		t.Fatal(err)
	}
	if !opts.RegistrationOpen || !opts.ArticleApproval || opts.Setup.AdminPassword != "ibis" {
		t.Errorf("unexpected partial options: %+v", opts)
	}

	if _, err := LoadOptions(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("setup: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOptions(bad); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLogLevel(tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if level != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, level)
			}
		})
	}

	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := LoadDotEnv(); err != nil {
		t.Errorf("missing .env should not be an error, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("IBIS_DOMAIN", "from-env.test")
	os.Unsetenv("IBIS_DOTENV_ONLY")
	t.Cleanup(func() { os.Unsetenv("IBIS_DOTENV_ONLY") })

	data := []byte("IBIS_DOMAIN=from-file.test\nIBIS_DOTENV_ONLY=yes\n")
	if err := os.WriteFile(".env", data, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("IBIS_DOTENV_ONLY"); got != "yes" {
		t.Errorf("expected value from .env, got %q", got)
	}
	// the environment wins over the file
	if got := os.Getenv("IBIS_DOMAIN"); got != "from-env.test" {
		t.Errorf("expected environment to win, got %q", got)
	}
}

func TestParseDevFlags_Defaults(t *testing.T) {
	for _, key := range []string{"IBIS_BIND", "IBIS_DEV_FRONTEND", "IBIS_DEV_BACKEND", "IBIS_DEV_STALE_PROCESS",
		"IBIS_DEV_WATCH", "IBIS_DEV_INCLUDE", "IBIS_DEV_EXCLUDE", "IBIS_DEV_DEBOUNCE", "IBIS_DEV_STOP_TIMEOUT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := ParseDevFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Bind != DefaultBind {
		t.Errorf("expected bind %s, got %s", DefaultBind, cfg.Bind)
	}
	if cfg.BackendCommand != "go run . serve" || cfg.StaleProcess != "trunk" {
		t.Errorf("unexpected commands: %+v", cfg)
	}
	if cfg.Debounce != 300*time.Millisecond || cfg.StopTimeout != 5*time.Second {
		t.Errorf("unexpected durations: %v %v", cfg.Debounce, cfg.StopTimeout)
	}
	if len(cfg.WatchDirs) != 1 || cfg.WatchDirs[0] != "." {
		t.Errorf("unexpected watch dirs: %v", cfg.WatchDirs)
	}
	if len(cfg.Include) != 3 || len(cfg.Exclude) != 2 {
		t.Errorf("unexpected patterns: %v %v", cfg.Include, cfg.Exclude)
	}
}

func TestParseDevFlags_Overrides(t *testing.T) {
	t.Setenv("IBIS_DEV_DEBOUNCE", "1s")

	cfg, err := ParseDevFlags([]string{
		"-b", "127.0.0.1:9999",
		"-backend", "./ibis serve",
		"-stale", "",
		"-watch", "cmd, internal ,,",
		"-stop-timeout", "250ms",
	})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Bind != "127.0.0.1:9999" || cfg.BackendCommand != "./ibis serve" || cfg.StaleProcess != "" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.Debounce != time.Second {
		t.Errorf("expected debounce from env, got %v", cfg.Debounce)
	}
	if cfg.StopTimeout != 250*time.Millisecond {
		t.Errorf("expected stop timeout 250ms, got %v", cfg.StopTimeout)
	}
	if len(cfg.WatchDirs) != 2 || cfg.WatchDirs[0] != "cmd" || cfg.WatchDirs[1] != "internal" {
		t.Errorf("unexpected watch dirs: %q", cfg.WatchDirs)
	}

	if _, err := ParseDevFlags([]string{"-backend", ""}); err == nil {
		t.Error("expected error for empty backend command")
	}
}

func TestParseMigrateFlags(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:ibis.db")
	t.Setenv("DATABASE_TYPE", "sqlite")

	cfg, err := ParseMigrateFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DatabaseURL != "file:ibis.db" || cfg.Steps != 1 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	cfg, err = ParseMigrateFlags([]string{"-t", "postgres", "-d", "postgres://localhost/ibis", "-n", "3"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DatabaseType != "postgres" || cfg.DatabaseURL != "postgres://localhost/ibis" || cfg.Steps != 3 {
		t.Errorf("flags not applied: %+v", cfg)
	}

	if _, err := ParseMigrateFlags([]string{"-n", "0"}); !errors.Is(err, ErrInvalidSteps) {
		t.Errorf("expected ErrInvalidSteps, got %v", err)
	}

	t.Setenv("DATABASE_URL", "")
	if _, err := ParseMigrateFlags([]string{}); !errors.Is(err, ErrDatabaseURLRequired) {
		t.Errorf("expected ErrDatabaseURLRequired, got %v", err)
	}
}
