// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package devrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
)

// KillStale terminates processes named exactly name, typically a bundler
// left over from an earlier session. Finding no such process is not an
// error, and neither is a system without pkill.
func KillStale(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}

	err := exec.CommandContext(ctx, "pkill", "-x", name).Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		slog.Info("killed stale process", "name", name)
		return nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 1:
		// no process matched
		return nil
	case errors.Is(err, exec.ErrNotFound):
		slog.Debug("pkill not available, skipping stale process cleanup", "name", name)
		return nil
	}
	return fmt.Errorf("kill stale %s: %w", name, err)
}
