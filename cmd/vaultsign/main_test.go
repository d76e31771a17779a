package main

import (
	"bytes"
	"context"
	"testing"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"build", "up", "down", "logs", "test", "run", "setup", "sweep"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("missing command %s: %v", name, err)
		}
	}
	run, _, _ := root.Find([]string{"run", "worker"})
	if run.Name() != "worker" {
		t.Fatalf("expected run worker subcommand, got %s", run.Name())
	}
	if run.Flag("memory") == nil {
		t.Fatalf("run subcommands should inherit --memory")
	}
}

func TestSetupWithMemoryStores(t *testing.T) {
	t.Setenv("VAULTSIGN_BACKEND", "memory")
	t.Setenv("VAULTSIGN_BLOB_DRIVER", "memory")
	t.Setenv("VAULTSIGN_LOG_LEVEL", "error")
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"setup"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("setup: %v (%s)", err, out.String())
	}
}
