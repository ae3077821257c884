// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package devrun

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// ProcessOptions configures a supervised process
type ProcessOptions struct {
	// Env replaces the environment when non-nil
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
	// StopTimeout is how long Stop waits after SIGINT before SIGKILL
	StopTimeout time.Duration
}

// Process is a shell command running in its own process group
type Process struct {
	name        string
	cmd         *exec.Cmd
	stopTimeout time.Duration
	done        chan struct{}
	err         error
}

// StartProcess runs command through the shell and reaps it in the
// background
func StartProcess(name, command string, opts ProcessOptions) (*Process, error) {
	cmd := shellCommand(command)
	cmd.Env = opts.Env
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	slog.Info("process started", "process", name, "pid", cmd.Process.Pid, "command", command)

	p := &Process{
		name:        name,
		cmd:         cmd,
		stopTimeout: opts.StopTimeout,
		done:        make(chan struct{}),
	}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Done is closed once the process has exited and been reaped
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error. Only valid after Done is closed.
func (p *Process) Err() error {
	return p.err
}

// Stop interrupts the process group and kills it if it is still running
// after the stop timeout. It returns once the process is reaped.
func (p *Process) Stop() {
	select {
	case <-p.done:
		return
	default:
	}

	if err := interruptGroup(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.Debug("interrupt failed", "process", p.name, "error", err)
	}

	timer := time.NewTimer(p.stopTimeout)
	defer timer.Stop()
	select {
	case <-p.done:
	case <-timer.C:
		slog.Warn("process ignored interrupt, killing", "process", p.name, "timeout", p.stopTimeout)
		if err := killGroup(p.cmd); err != nil {
			slog.Debug("kill failed", "process", p.name, "error", err)
		}
		<-p.done
	}
	slog.Info("process stopped", "process", p.name)
}
