package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sourcegraph/log/logtest"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 1000}`), 0o644))

	reloaded := make(chan Config, 1)
	w := NewWatcher(path, logtest.Scoped(t), func(cfg Config) {
		reloaded <- cfg
	})

	stop := make(chan struct{})
	defer close(stop)
	go w.Run(stop)

	// Give fsnotify a moment to establish the directory watch before the
	// write that should trigger it.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 2000}`), 0o644))

	select {
	case cfg := <-reloaded:
		require.Equal(t, 2000, cfg.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 1000}`), 0o644))

	reloaded := make(chan Config, 1)
	w := NewWatcher(path, logtest.Scoped(t), func(cfg Config) {
		reloaded <- cfg
	})

	stop := make(chan struct{})
	defer close(stop)
	go w.Run(stop)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o644))

	select {
	case <-reloaded:
		t.Fatal("unexpected reload triggered by unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherEmptyPathIsNoop(t *testing.T) {
	w := NewWatcher("", logtest.Scoped(t), func(Config) {
		t.Fatal("onLoad should never be called")
	})
	done := make(chan struct{})
	go func() {
		w.Run(nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with empty path should return immediately")
	}
}
