package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("routing:\n  - capability: shell\n    command: [sh]\n"), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	reloaded := make(chan Policy, 1)
	w, err := NewWatcher(path,
		func(p Policy) {
			select {
			case reloaded <- p:
			default:
			}
		},
		func(err error) { t.Logf("watch error: %v", err) })
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.WriteFile(path, []byte("routing:\n  - capability: python\n    command: [python3]\n"), 0o644); err != nil {
		t.Fatalf("rewrite policy file: %v", err)
	}

	select {
	case p := <-reloaded:
		if len(p.Routing) != 1 || p.Routing[0].Capability != "python" {
			t.Errorf("reloaded policy = %+v", p.Routing)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_KeepsPolicyOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("routing: []\n"), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	reloaded := make(chan Policy, 1)
	failed := make(chan error, 1)
	w, err := NewWatcher(path,
		func(p Policy) {
			select {
			case reloaded <- p:
			default:
			}
		},
		func(err error) {
			select {
			case failed <- err:
			default:
			}
		})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.WriteFile(path, []byte("routing: [unclosed"), 0o644); err != nil {
		t.Fatalf("rewrite policy file: %v", err)
	}

	select {
	case err := <-failed:
		if err == nil {
			t.Error("expected a parse error")
		}
	case p := <-reloaded:
		t.Errorf("broken file should not reload, got %+v", p)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error callback")
	}
}
