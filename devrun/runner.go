// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package devrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/ibis/cliparse"
)

// ErrFrontendExited stops the runner when the bundler dies on its own
var ErrFrontendExited = errors.New("frontend exited")

// Runner supervises the frontend bundler and the backend side by side
type Runner struct {
	cfg    cliparse.DevConfig
	Stdout io.Writer
	Stderr io.Writer
}

func NewRunner(cfg cliparse.DevConfig) *Runner {
	return &Runner{cfg: cfg, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Expand replaces {bind} in a command with the backend address
func (r *Runner) Expand(command string) string {
	return strings.ReplaceAll(command, "{bind}", r.cfg.Bind)
}

func (r *Runner) start(name, command string) (*Process, error) {
	return StartProcess(name, r.Expand(command), ProcessOptions{
		Env:         append(os.Environ(), "IBIS_BIND="+r.cfg.Bind),
		Stdout:      r.Stdout,
		Stderr:      r.Stderr,
		StopTimeout: r.cfg.StopTimeout,
	})
}

// Run kills a stale bundler, starts the frontend and the backend, and
// restarts the backend whenever watched sources change. It returns nil once
// ctx is canceled and both processes are stopped. An empty frontend command
// runs the backend alone.
func (r *Runner) Run(ctx context.Context) error {
	if err := KillStale(ctx, r.cfg.StaleProcess); err != nil {
		slog.Warn("could not kill stale process", "name", r.cfg.StaleProcess, "error", err)
	}

	watcher, err := NewWatcher(r.cfg.WatchDirs, r.cfg.Include, r.cfg.Exclude, r.cfg.Debounce)
	if err != nil {
		return err
	}

	var frontend *Process
	if r.cfg.FrontendCommand != "" {
		frontend, err = r.start("frontend", r.cfg.FrontendCommand)
		if err != nil {
			watcher.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	changes := make(chan []string)
	g.Go(func() error {
		return watcher.Run(gctx, changes)
	})
	g.Go(func() error {
		return superviseFrontend(gctx, frontend)
	})
	g.Go(func() error {
		return r.superviseBackend(gctx, changes)
	})

	err = g.Wait()
	if ctx.Err() != nil {
		slog.Info("dev runner stopped")
		return nil
	}
	return err
}

func superviseFrontend(ctx context.Context, frontend *Process) error {
	if frontend == nil {
		<-ctx.Done()
		return nil
	}
	select {
	case <-ctx.Done():
		frontend.Stop()
		return nil
	case <-frontend.Done():
		if err := frontend.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrFrontendExited, err)
		}
		return ErrFrontendExited
	}
}

// superviseBackend keeps one backend running. A crashed backend is left
// down until the next change, so compile errors do not end the session.
func (r *Runner) superviseBackend(ctx context.Context, changes <-chan []string) error {
	backend, err := r.start("backend", r.cfg.BackendCommand)
	if err != nil {
		return err
	}
	exited := backend.Done()

	for {
		select {
		case <-ctx.Done():
			backend.Stop()
			return nil

		case <-exited:
			exited = nil
			slog.Warn("backend exited, waiting for changes", "error", backend.Err())

		case files := <-changes:
			slog.Info("sources changed, restarting backend", "files", files)
			backend.Stop()
			backend, err = r.start("backend", r.cfg.BackendCommand)
			if err != nil {
				return err
			}
			exited = backend.Done()
		}
	}
}
