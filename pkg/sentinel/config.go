package sentinel

import (
	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/opcua"
	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/simulator"
	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/sink"
	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/stream"
	"github.com/oscar1457/Industrial-Sentinel/internal/app/config"
	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// SystemConfig holds cadence, queue sizes, smoothing and physical ranges.
	SystemConfig = domain.SystemConfig
	// Policy controls enqueue waits, join and read timeouts.
	Policy = ports.Policy
	// OPCUAConfig holds connection and node details.
	OPCUAConfig = opcua.Config
	// SimulatorConfig tunes the synthetic source.
	SimulatorConfig = simulator.Config
	// PersistenceConfig selects the sink driver.
	PersistenceConfig = config.PersistenceConfig
	// TimescaleConfig configures the SQL sink.
	TimescaleConfig = config.TimescaleConfig
	// RedisConfig configures the Redis Streams sink.
	RedisConfig = sink.RedisStreamConfig
	// JournalConfig configures the local spool.
	JournalConfig = config.JournalConfig
	// MetricsConfig configures the HTTP server.
	MetricsConfig = config.MetricsConfig
	// StreamConfig sizes the live history and broadcast cadence.
	StreamConfig = stream.Config
	// AlertsConfig overrides the default alert rules.
	AlertsConfig = config.AlertsConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a simulation config without persistence.
func DefaultConfig() *Config {
	return config.Default()
}
