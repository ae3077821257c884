// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package devrun

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// skippedDirs are never watched, in addition to the directories the go
// tool ignores
var skippedDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"target":       true,
	"dist":         true,
}

func skipDir(name string) bool {
	if name == "." {
		return false
	}
	return skippedDirs[name] || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// Watcher reports batches of changed source files. Paths are slash
// separated and relative to the watched directory containing them.
type Watcher struct {
	fsw      *fsnotify.Watcher
	roots    []string
	include  []string
	exclude  []string
	debounce time.Duration
}

// NewWatcher watches dirs and everything below them. A file counts when it
// matches an include pattern and no exclude pattern.
func NewWatcher(dirs, include, exclude []string, debounce time.Duration) (*Watcher, error) {
	for _, pattern := range slices.Concat(include, exclude) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: %q", doublestar.ErrBadPattern, pattern)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		include:  include,
		exclude:  exclude,
		debounce: debounce,
	}

	for _, dir := range dirs {
		root, err := filepath.Abs(dir)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.roots = append(w.roots, root)
		if _, err := w.addRecursive(root); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	slog.Debug("watching for changes", "dirs", w.roots, "include", include, "exclude", exclude)
	return w, nil
}

// Close stops watching. Run also closes the watcher when it returns.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run sends a batch once no further matching change arrived for the
// debounce period. It returns nil when ctx is done.
func (w *Watcher) Run(ctx context.Context, changes chan<- []string) error {
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			files := w.handle(event)
			if len(files) == 0 {
				continue
			}
			for _, f := range files {
				pending[f] = struct{}{}
			}
			fire = time.After(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)

		case <-fire:
			fire = nil
			batch := make([]string, 0, len(pending))
			for f := range pending {
				batch = append(batch, f)
			}
			slices.Sort(batch)
			clear(pending)

			select {
			case changes <- batch:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// handle returns the matching files an event touched
func (w *Watcher) handle(event fsnotify.Event) []string {
	if event.Op == fsnotify.Chmod {
		return nil
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if skipDir(info.Name()) {
				return nil
			}
			// files may land before the new directory is watched
			files, err := w.addRecursive(event.Name)
			if err != nil {
				slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return files
		}
	}

	if rel, ok := w.match(event.Name); ok {
		return []string{rel}
	}
	return nil
}

// addRecursive watches dir and its subdirectories and returns the matching
// files already inside
func (w *Watcher) addRecursive(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if rel, ok := w.match(path); ok {
				files = append(files, rel)
			}
			return nil
		}
		if path != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
	return files, err
}

// match reports whether path passes the include and exclude patterns
func (w *Watcher) match(path string) (string, bool) {
	rel, ok := w.relative(path)
	if !ok {
		return "", false
	}

	included := false
	for _, pattern := range w.include {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			included = true
			break
		}
	}
	if !included {
		return "", false
	}
	for _, pattern := range w.exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return "", false
		}
	}
	return rel, true
}

func (w *Watcher) relative(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}
