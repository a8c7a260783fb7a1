package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/opcua"
	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/simulator"
	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/sink"
	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/stream"
	"github.com/oscar1457/Industrial-Sentinel/internal/alerts"
	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

const (
	ProfileSimulation = "simulation"
	ProfileOPCUA      = "opcua"
)

const (
	DriverNone      = "none"
	DriverTimescale = "timescale"
	DriverRedis     = "redis"
	DriverJournal   = "journal"
)

type Config struct {
	Profile     string                 `yaml:"profile"`
	System      domain.SystemConfig    `yaml:"system"`
	Policy      ports.Policy           `yaml:"policy"`
	Alerts      AlertsConfig           `yaml:"alerts"`
	Persistence PersistenceConfig      `yaml:"persistence"`
	Timescale   TimescaleConfig        `yaml:"timescale"`
	Redis       sink.RedisStreamConfig `yaml:"redis"`
	Journal     JournalConfig          `yaml:"journal"`
	OPCUA       opcua.Config           `yaml:"opcua"`
	Simulator   simulator.Config       `yaml:"simulator"`
	Metrics     MetricsConfig          `yaml:"metrics"`
	Stream      stream.Config          `yaml:"stream"`
}

// AlertsConfig replaces the default rule set when Rules is non-empty.
type AlertsConfig struct {
	Rules []alerts.Rule `yaml:"rules"`
}

type PersistenceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"`
}

type TimescaleConfig struct {
	ConnString   string      `yaml:"conn_string"`
	Tables       sink.Tables `yaml:"tables"`
	EnsureSchema bool        `yaml:"ensure_schema"`
	Hypertable   bool        `yaml:"hypertable"`
}

type JournalConfig struct {
	Dir string `yaml:"dir"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a runnable simulation configuration without persistence.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate re-checks a config built in code.
func (c *Config) Validate() error {
	c.applyDefaults()
	return c.validate()
}

// UsesOPCUA reports whether samples come from the OPC UA server rather than
// the simulator.
func (c *Config) UsesOPCUA() bool {
	return c.Profile == ProfileOPCUA && c.OPCUA.Enabled
}

func (c *Config) applyDefaults() {
	c.Profile = strings.ToLower(strings.TrimSpace(c.Profile))
	if c.Profile == "" {
		c.Profile = ProfileSimulation
	}

	c.System.ApplyDefaults()
	c.Policy.ApplyDefaults()

	c.Persistence.Driver = strings.ToLower(strings.TrimSpace(c.Persistence.Driver))
	switch {
	case c.Persistence.Driver == DriverNone:
		c.Persistence.Enabled = false
	case c.Persistence.Enabled && c.Persistence.Driver == "":
		c.Persistence.Driver = DriverJournal
	case !c.Persistence.Enabled:
		c.Persistence.Driver = DriverNone
	}
	c.Policy.PersistenceEnabled = c.Persistence.Enabled

	if c.Timescale.Tables.Telemetry == "" && c.Timescale.Tables.Alerts == "" {
		c.Timescale.Tables = sink.DefaultTables()
	}
	c.Redis.ApplyDefaults()
	if c.Journal.Dir == "" {
		c.Journal.Dir = "./data/journal"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Stream.History <= 0 {
		c.Stream.History = c.System.BufferCapacity
	}
	c.Stream.ApplyDefaults()
	c.Simulator.ApplyDefaults()
	c.OPCUA.ApplyDefaults()
}

func (c *Config) validate() error {
	var errs []error

	switch c.Profile {
	case ProfileSimulation, ProfileOPCUA:
	default:
		errs = append(errs, fmt.Errorf("profile %q must be %q or %q", c.Profile, ProfileSimulation, ProfileOPCUA))
	}
	if err := c.System.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("system config: %w", err))
	}
	if c.UsesOPCUA() {
		if err := c.OPCUA.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("opcua config: %w", err))
		}
	}
	for i, r := range c.Alerts.Rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("alerts.rules[%d]: %w", i, err))
		}
	}

	switch c.Persistence.Driver {
	case DriverNone, DriverJournal, DriverRedis:
	case DriverTimescale:
		if c.Timescale.ConnString == "" {
			errs = append(errs, errors.New("timescale.conn_string is required for the timescale driver"))
		}
		if err := c.Timescale.Tables.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("timescale.tables: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("persistence.driver %q is not supported", c.Persistence.Driver))
	}

	if c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required"))
	}
	return errors.Join(errs...)
}
