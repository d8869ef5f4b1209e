// Package config loads the cukewire.yaml manifest that configures a wire
// server: the replay fixture to serve, transcript and trace destinations, and
// logging.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the manifest file searched for by Discover.
const FileName = "cukewire.yaml"

// LogLevelEnv overrides the configured log level when set.
const LogLevelEnv = "CUKEWIRE_LOG_LEVEL"

// Config is a cukewire.yaml manifest.
type Config struct {
	Fixture    string    `yaml:"fixture,omitempty"    json:"fixture,omitempty"`
	Transcript string    `yaml:"transcript,omitempty" json:"transcript,omitempty"`
	Log        Log       `yaml:"log,omitempty"        json:"log,omitempty"`
	Telemetry  Telemetry `yaml:"telemetry,omitempty"  json:"telemetry,omitempty"`

	// Root is the directory containing the manifest; relative paths resolve
	// against it. Set after loading, not from YAML.
	Root string `yaml:"-" json:"-"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level,omitempty"  json:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty" json:"format,omitempty"` // json, text
}

// Telemetry configures span export.
type Telemetry struct {
	TraceFile   string `yaml:"trace_file,omitempty"   json:"trace_file,omitempty"`
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty"`
}

// Default returns the configuration used when no manifest exists.
func Default() *Config {
	return &Config{
		Log:       Log{Level: "info", Format: "json"},
		Telemetry: Telemetry{ServiceName: "cukewire"},
	}
}

// LoadFile reads a manifest, fills defaults and records its directory as Root.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.Root = filepath.Dir(abs)
	return cfg, nil
}

// Load decodes a manifest strictly; unknown fields are errors.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q: want json or text", c.Log.Format)
	}
	return nil
}

// Discover walks up from startPath to find the nearest cukewire.yaml.
// It returns nil (no error) if no manifest is found; callers should fall
// back to Default.
func Discover(startPath string) (*Config, error) {
	abs, err := filepath.Abs(startPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	dir := abs
	if !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return LoadFile(candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Resolve returns path made absolute against Root. Empty paths stay empty.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.Root == "" {
		return path
	}
	return filepath.Join(c.Root, path)
}

// LogLevel returns the effective log level, honouring CUKEWIRE_LOG_LEVEL.
func (c *Config) LogLevel() string {
	if env := os.Getenv(LogLevelEnv); env != "" {
		return env
	}
	if c.Log.Level == "" {
		return "info"
	}
	return c.Log.Level
}
