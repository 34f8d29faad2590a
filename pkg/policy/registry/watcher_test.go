package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestNewWatcher_Validation(t *testing.T) {
	if _, err := NewWatcher(nil, nil); err == nil {
		t.Fatal("NewWatcher(nil) returned no error")
	}
	if _, err := NewWatcher(&WatcherConfig{}, nil); err == nil {
		t.Fatal("NewWatcher with empty path returned no error")
	}

	w, err := NewWatcher(&WatcherConfig{Path: "policies.yaml", DebounceInterval: -1}, nil)
	if err != nil {
		t.Fatalf("NewWatcher returned error: %v", err)
	}
	defer w.Close()

	if w.config.DebounceInterval != 100*time.Millisecond {
		t.Errorf("DebounceInterval = %v, want default 100ms", w.config.DebounceInterval)
	}
}

func TestWatcher_ReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	if err := os.WriteFile(path, []byte("policies: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(&WatcherConfig{Path: path, DebounceInterval: 20 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("NewWatcher returned error: %v", err)
	}
	defer w.Close()

	reloaded := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func() error {
			select {
			case reloaded <- struct{}{}:
			default:
			}
			return nil
		})
	}()

	// Give Watch a moment to register the directory watch before writing.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("policies:\n  - name: edited\n    rules: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback not invoked after file write")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after context cancellation")
	}
}

func TestWatcher_AlreadyRunning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	if err := os.WriteFile(path, []byte("policies: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(DefaultWatcherConfig(path), nil)
	if err != nil {
		t.Fatalf("NewWatcher returned error: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func() error { return nil })
	}()
	time.Sleep(50 * time.Millisecond)

	if err := w.Watch(ctx, func() error { return nil }); err == nil {
		t.Error("second Watch call returned no error")
	}

	cancel()
	<-done
}

func TestWatcher_Relevant(t *testing.T) {
	w := &Watcher{config: &WatcherConfig{Path: "/etc/guardian/policies.yaml"}}

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"write to watched file", fsnotify.Event{Name: "/etc/guardian/policies.yaml", Op: fsnotify.Write}, true},
		{"create replaces file", fsnotify.Event{Name: "/etc/guardian/policies.yaml", Op: fsnotify.Create}, true},
		{"rename", fsnotify.Event{Name: "/etc/guardian/policies.yaml", Op: fsnotify.Rename}, true},
		{"chmod ignored", fsnotify.Event{Name: "/etc/guardian/policies.yaml", Op: fsnotify.Chmod}, false},
		{"remove ignored", fsnotify.Event{Name: "/etc/guardian/policies.yaml", Op: fsnotify.Remove}, false},
		{"other file in dir", fsnotify.Event{Name: "/etc/guardian/other.yaml", Op: fsnotify.Write}, false},
		{"editor temp file", fsnotify.Event{Name: "/etc/guardian/.policies.yaml.swp", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.relevant(tt.event); got != tt.want {
				t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}
