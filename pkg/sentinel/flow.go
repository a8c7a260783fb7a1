package sentinel

import (
	"context"
	"errors"
)

// Flow collects RuntimeOptions in three steps: Conf picks the machine config,
// StreamIN names where samples come from, StreamOUT names where frames and
// alerts go and returns the Runtime.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption is applied once, right after the config is loaded.
type FlowOption func(*Flow)

// StreamInOption picks the sample source or its observability.
type StreamInOption func(*Flow)

// StreamOutOption picks the persistence sink, live observers or metrics.
type StreamOutOption func(*Flow)

var errNilFlow = errors.New("flow is nil")

// Conf reads the YAML file at path and starts a Flow from it.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from a Config built in code.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	f := &Flow{cfg: cfg}
	applyFlow(f, opts)
	return f, nil
}

// Config is the live config; edits made before StreamOUT reach the Runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options adds RuntimeOptions that have no StreamIN or StreamOUT shorthand.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	applyFlow(f, opts)
	return f
}

// StreamOUT applies opts and builds the Runtime. The Runtime is not started.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, errNilFlow
	}
	applyFlow(f, opts)
	return NewRuntime(f.cfg, f.opts...)
}

// Run builds the Runtime and blocks in Runtime.Run until ctx ends.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions lets Conf carry RuntimeOptions.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) { f.appendOptions(opts...) }
}

// StreamInSource reads samples from src instead of the configured profile.
func StreamInSource(src Source) StreamInOption {
	if src == nil {
		return nil
	}
	return func(f *Flow) { f.appendOptions(WithSource(src)) }
}

func StreamInObservability(obs Observability) StreamInOption {
	if obs == nil {
		return nil
	}
	return func(f *Flow) { f.appendOptions(WithObservability(obs)) }
}

// StreamOutSink persists to s and turns persistence on.
func StreamOutSink(s Sink) StreamOutOption {
	if s == nil {
		return nil
	}
	return func(f *Flow) { f.appendOptions(WithSink(s)) }
}

func StreamOutObservability(obs Observability) StreamOutOption {
	if obs == nil {
		return nil
	}
	return func(f *Flow) { f.appendOptions(WithObservability(obs)) }
}

// StreamOutCallback persists through onFrame and onAlert. Either may be nil.
func StreamOutCallback(name string, onFrame FrameHandler, onAlert AlertHandler) StreamOutOption {
	return func(f *Flow) {
		f.appendOptions(WithSink(NewCallbackSink(name, onFrame, onAlert)))
	}
}

// StreamOutObserver receives frames, alerts and faults as they happen,
// independent of persistence.
func StreamOutObserver(obs Observer) StreamOutOption {
	if obs == nil {
		return nil
	}
	return func(f *Flow) { f.appendOptions(WithObserver(obs)) }
}

func applyFlow[O ~func(*Flow)](f *Flow, opts []O) {
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	if f == nil {
		return
	}
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
