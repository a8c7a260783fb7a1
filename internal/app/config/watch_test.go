package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "system:\n  ingest_rate_hz: 100\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zaptest.NewLogger(t), func(c *Config) { changes <- c })
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	// an invalid edit is skipped
	if err := os.WriteFile(path, []byte("profile: plc\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("system:\n  ingest_rate_hz: 50\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Profile != ProfileSimulation {
				t.Fatalf("invalid config should not be delivered, got profile %q", c.Profile)
			}
			if c.System.IngestRateHz == 50 {
				cancel()
				if err := <-done; err != nil {
					t.Fatalf("watch returned %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}

func TestWatchReloadsOnRenameOver(t *testing.T) {
	path := writeConfig(t, "system:\n  ingest_rate_hz: 100\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zaptest.NewLogger(t), func(c *Config) { changes <- c })
	}()
	time.Sleep(100 * time.Millisecond)

	// two atomic saves in a row; the second proves the watch outlived the first
	for i, hz := range []int{40, 60} {
		tmp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".config.yaml.swp%d", i))
		if err := os.WriteFile(tmp, []byte(fmt.Sprintf("system:\n  ingest_rate_hz: %d\n", hz)), 0o600); err != nil {
			t.Fatalf("write temp: %v", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			t.Fatalf("rename: %v", err)
		}
		waitForRate(t, changes, hz)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch returned %v", err)
	}
}

func waitForRate(t *testing.T, changes <-chan *Config, hz int) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.System.IngestRateHz == hz {
				return
			}
		case <-deadline:
			t.Fatalf("reload to ingest_rate_hz %d not observed", hz)
		}
	}
}

func TestWatchMissingFile(t *testing.T) {
	err := Watch(context.Background(), "/nonexistent/config.yaml", nil, func(*Config) {})
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}
