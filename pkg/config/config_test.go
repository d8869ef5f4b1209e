package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Telemetry.ServiceName != "cukewire" {
		t.Errorf("service name = %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
fixture: fixtures/calc.yaml
transcript: out/session.jsonl
log:
  level: debug
  format: text
telemetry:
  trace_file: out/spans.json
`))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Fixture != "fixtures/calc.yaml" || cfg.Transcript != "out/session.jsonl" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Telemetry.TraceFile != "out/spans.json" || cfg.Telemetry.ServiceName != "cukewire" {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	if _, err := Load(strings.NewReader("listen: 3902\n")); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRejectsBadFormat(t *testing.T) {
	if _, err := Load(strings.NewReader("log:\n  format: xml\n")); err == nil {
		t.Fatal("expected error for bad log format")
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("fixture: calc.yaml\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "features", "steps")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := Discover(nested)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Discover() found nothing")
	}
	wantRoot, _ := filepath.Abs(root)
	if cfg.Root != wantRoot {
		t.Errorf("root = %q, want %q", cfg.Root, wantRoot)
	}
	if got := cfg.Resolve(cfg.Fixture); got != filepath.Join(wantRoot, "calc.yaml") {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestResolve(t *testing.T) {
	cfg := &Config{Root: "/srv/features"}
	tests := map[string]string{
		"":               "",
		"calc.yaml":      filepath.Join("/srv/features", "calc.yaml"),
		"/abs/calc.yaml": "/abs/calc.yaml",
		"sub/../x.jsonl": filepath.Join("/srv/features", "x.jsonl"),
	}
	for in, want := range tests {
		if got := cfg.Resolve(in); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLogLevelEnvOverride(t *testing.T) {
	cfg := Default()
	t.Setenv(LogLevelEnv, "")
	if cfg.LogLevel() != "info" {
		t.Errorf("LogLevel() = %q, want info", cfg.LogLevel())
	}
	t.Setenv(LogLevelEnv, "debug")
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel() = %q, want debug", cfg.LogLevel())
	}
}
