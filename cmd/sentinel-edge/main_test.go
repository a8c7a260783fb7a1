package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oscar1457/Industrial-Sentinel/pkg/sentinel"
)

func TestNewLogger(t *testing.T) {
	if _, err := newLogger(&globalFlags{logLevel: "debug", logFormat: "console"}); err != nil {
		t.Fatalf("console logger: %v", err)
	}
	if _, err := newLogger(&globalFlags{logLevel: "loud", logFormat: "json"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := newLogger(&globalFlags{logLevel: "info", logFormat: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("system:\n  ingest_rate_hz: 125\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"validate", "--config", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out.String(), "125 Hz") || !strings.Contains(out.String(), "simulator") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestValidateCommandRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("profile: plc\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"validate", "--config", path})
	if err := root.Execute(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestStatsOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sentinel.RuntimeStatus{
			Pipeline: sentinel.PipelineStatus{
				Timestamp:          time.Unix(0, 0).UTC(),
				IngestRateHz:       250,
				DroppedSamples:     3,
				PersistenceHealthy: false,
			},
			Running: true,
			Source:  "SIM",
			Sink:    "timescaledb",
		})
	}))
	defer srv.Close()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"stats", "--once", "--url", srv.URL})
	if err := root.Execute(); err != nil {
		t.Fatalf("stats: %v", err)
	}
	got := out.String()
	for _, want := range []string{"SIM", "ingest=250.0Hz", "dropped=3", "timescaledb(degraded)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}

func TestReplayRejectsJournalTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "persistence:\n  enabled: true\n  driver: journal\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"replay", "--config", path})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "replay target") {
		t.Fatalf("expected replay target error, got %v", err)
	}
}
