package sentinel

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	base "github.com/oscar1457/Industrial-Sentinel/pkg/sentinel"
)

// Re-exported errors for convenience.
var (
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrSourceClosed      = base.ErrSourceClosed
	ErrRuntimeClosed     = base.ErrRuntimeClosed
)

const (
	SeverityInfo     = base.SeverityInfo
	SeverityWarning  = base.SeverityWarning
	SeverityCritical = base.SeverityCritical
)

// Type aliases so consumers can import github.com/oscar1457/Industrial-Sentinel directly.
type (
	Config            = base.Config
	SystemConfig      = base.SystemConfig
	Policy            = base.Policy
	OPCUAConfig       = base.OPCUAConfig
	SimulatorConfig   = base.SimulatorConfig
	PersistenceConfig = base.PersistenceConfig
	TimescaleConfig   = base.TimescaleConfig
	RedisConfig       = base.RedisConfig
	JournalConfig     = base.JournalConfig
	MetricsConfig     = base.MetricsConfig
	StreamConfig      = base.StreamConfig
	AlertsConfig      = base.AlertsConfig
	AlertRule         = base.AlertRule
	Flow              = base.Flow
	FlowOption        = base.FlowOption
	StreamInOption    = base.StreamInOption
	StreamOutOption   = base.StreamOutOption
	Runtime           = base.Runtime
	RuntimeOption     = base.RuntimeOption
	RuntimeStatus     = base.RuntimeStatus
	PipelineStatus    = base.PipelineStatus
	Sample            = base.Sample
	Frame             = base.Frame
	AlertEvent        = base.AlertEvent
	Severity          = base.Severity
	Source            = base.Source
	Sink              = base.Sink
	Observability     = base.Observability
	Field             = base.Field
	Observer          = base.Observer
	ObserverFuncs     = base.ObserverFuncs
	StageError        = base.StageError
	FrameHandler      = base.FrameHandler
	AlertHandler      = base.AlertHandler
	Record            = base.Record
	ExternalSource    = base.ExternalSource
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInSource(src Source) StreamInOption {
	return base.StreamInSource(src)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, onFrame FrameHandler, onAlert AlertHandler) StreamOutOption {
	return base.StreamOutCallback(name, onFrame, onAlert)
}

func StreamOutObserver(obs Observer) StreamOutOption {
	return base.StreamOutObserver(obs)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithSource(src Source) RuntimeOption {
	return base.WithSource(src)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithLogger(log *zap.Logger) RuntimeOption {
	return base.WithLogger(log)
}

func WithObserver(obs Observer) RuntimeOption {
	return base.WithObserver(obs)
}

func WithRegisterer(reg prometheus.Registerer) RuntimeOption {
	return base.WithRegisterer(reg)
}

// Sink and source adapters.
func NewCallbackSink(name string, onFrame FrameHandler, onAlert AlertHandler) Sink {
	return base.NewCallbackSink(name, onFrame, onAlert)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan Record, func()) {
	return base.NewChannelSink(name, buffer)
}

func NewExternalSource(buffer int) *ExternalSource {
	return base.NewExternalSource(buffer)
}
