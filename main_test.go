package main

import (
	"path/filepath"
	"testing"
)

func TestRootCommands(t *testing.T) {
	cmd := rootCmd()

	for _, name := range []string{"serve", "migrate", "dev", "version"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("Expected subcommand %s, got %v (%v)", name, sub, err)
		}
	}
	for _, name := range []string{"up", "down", "status"} {
		if sub, _, err := cmd.Find([]string{"migrate", name}); err != nil || sub.Name() != name {
			t.Errorf("Expected migrate subcommand %s, got %v (%v)", name, sub, err)
		}
	}
}

func TestMigrateCommands(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_TYPE", "sqlite")
	url := "file:" + filepath.Join(t.TempDir(), "ibis.db")

	steps := [][]string{
		{"migrate", "up", "-d", url},
		{"migrate", "status", "-d", url},
		{"migrate", "down", "-d", url, "-n", "2"},
		{"migrate", "up", "-d", url},
	}
	for _, args := range steps {
		cmd := rootCmd()
		cmd.SetArgs(args)
		if err := cmd.Execute(); err != nil {
			t.Fatalf("%v failed: %v", args, err)
		}
	}
}

func TestMigrateHelpIsNotAnError(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"migrate", "status", "-h"})
	if err := cmd.Execute(); err != nil {
		t.Errorf("Expected -h to succeed, got %v", err)
	}
}
