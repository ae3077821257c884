package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielhkuo/ibis/cliparse"
	"github.com/danielhkuo/ibis/db"
	"github.com/danielhkuo/ibis/devrun"
	"github.com/danielhkuo/ibis/middleware"
	"github.com/danielhkuo/ibis/router"
	"github.com/danielhkuo/ibis/store"
	"github.com/danielhkuo/ibis/wiki"
)

const Version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ibis",
		Short:         "Federated wiki backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or list schema migrations",
	}
	migrate.AddCommand(
		passthrough("up", "Apply all pending migrations", migrateUp),
		passthrough("down", "Roll back the last -n migrations", migrateDown),
		passthrough("status", "List migrations and whether they are applied", migrateStatus),
	)

	cmd.AddCommand(
		passthrough("serve", "Run the API server", serve),
		migrate,
		passthrough("dev", "Run frontend and backend with live reload", dev),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("ibis version %s\n", Version)
			},
		},
	)
	return cmd
}

// passthrough hands the raw arguments to the cliparse flag sets, which own
// flag and env handling
func passthrough(use, short string, run func(ctx context.Context, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:                use,
		Short:              short,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd.Context(), args)
			if errors.Is(err, flag.ErrHelp) {
				return nil
			}
			return err
		},
	}
}

func setupLogging(levelName string) {
	level, err := cliparse.ParseLogLevel(levelName)
	if err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func serve(ctx context.Context, args []string) error {
	if err := cliparse.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := cliparse.ParseFlags(args)
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	dialect, err := db.ParseDialect(cfg.DatabaseType)
	if err != nil {
		return err
	}
	conn, err := db.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.CreateSchema(conn, dialect); err != nil {
		return err
	}
	slog.Info("Database schema ready", "dialect", dialect)

	svc := wiki.New(store.New(conn), cfg)
	if err := svc.Setup(ctx); err != nil {
		return fmt.Errorf("initial setup: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Bind,
		Handler:           middleware.CORS(router.NewRouter(svc, cfg)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		slog.Info("Listening", "bind", cfg.Bind, "url", cfg.Protocol+"://"+cfg.Domain)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
		return err
	}
	slog.Info("Server closed")
	return nil
}

// openMigrator connects to the configured database without applying
// anything
func openMigrator(ctx context.Context, args []string) (*db.Migrator, *sql.DB, cliparse.MigrateConfig, error) {
	if err := cliparse.LoadDotEnv(); err != nil {
		return nil, nil, cliparse.MigrateConfig{}, err
	}
	cfg, err := cliparse.ParseMigrateFlags(args)
	if err != nil {
		return nil, nil, cliparse.MigrateConfig{}, err
	}
	setupLogging(cfg.LogLevel)

	dialect, err := db.ParseDialect(cfg.DatabaseType)
	if err != nil {
		return nil, nil, cfg, err
	}
	conn, err := db.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, cfg, err
	}
	m, err := db.NewMigrator(conn, dialect)
	if err != nil {
		conn.Close()
		return nil, nil, cfg, err
	}
	return m, conn, cfg, nil
}

func migrateUp(ctx context.Context, args []string) error {
	m, conn, _, err := openMigrator(ctx, args)
	if err != nil {
		return err
	}
	defer conn.Close()

	n, err := m.Up(ctx)
	if err != nil {
		return err
	}
	version, err := m.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("applied %d migration(s), schema version %d\n", n, version)
	return nil
}

func migrateDown(ctx context.Context, args []string) error {
	m, conn, cfg, err := openMigrator(ctx, args)
	if err != nil {
		return err
	}
	defer conn.Close()

	n, err := m.Down(ctx, cfg.Steps)
	if err != nil {
		return err
	}
	version, err := m.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("rolled back %d migration(s), schema version %d\n", n, version)
	return nil
}

func migrateStatus(ctx context.Context, args []string) error {
	m, conn, _, err := openMigrator(ctx, args)
	if err != nil {
		return err
	}
	defer conn.Close()

	statuses, err := m.Status(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
	for _, st := range statuses {
		applied := "pending"
		if st.Applied {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%04d\t%s\t%s\n", st.Version, st.Name, applied)
	}
	return tw.Flush()
}

func dev(ctx context.Context, args []string) error {
	if err := cliparse.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := cliparse.ParseDevFlags(args)
	if err != nil {
		return err
	}
	setupLogging(os.Getenv("LOG_LEVEL"))

	// one handler for both children; they run in their own process groups
	// and are interrupted by the runner
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting dev runner", "bind", cfg.Bind, "watch", cfg.WatchDirs)
	return devrun.NewRunner(cfg).Run(ctx)
}
