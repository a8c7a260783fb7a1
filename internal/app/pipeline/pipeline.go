// Package pipeline runs the three-stage telemetry pipeline: ingest reads a
// source at a fixed cadence, process sanitizes, smooths and evaluates alerts,
// persist hands frames and alerts to a sink. Stages are joined by bounded
// queues and never block each other for longer than the enqueue timeout.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/queue"
	"github.com/oscar1457/Industrial-Sentinel/internal/alerts"
	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
	"github.com/oscar1457/Industrial-Sentinel/internal/processing"
)

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithObservability routes logs and metrics to obs.
func WithObservability(obs ports.Observability) Option {
	return func(p *Pipeline) {
		if obs != nil {
			p.obs = obs
		}
	}
}

// WithEvaluator replaces the default rule set derived from the system config.
func WithEvaluator(ev *alerts.Evaluator) Option {
	return func(p *Pipeline) {
		if ev != nil {
			p.evaluator = ev
		}
	}
}

type Pipeline struct {
	cfg       domain.SystemConfig
	policy    ports.Policy
	source    ports.SampleSource
	sink      ports.PersistenceSink
	obs       ports.Observability
	sanitizer *processing.Sanitizer
	evaluator *alerts.Evaluator

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	workers []worker

	subMu       sync.Mutex
	nextSubID   uint64
	subscribers atomic.Pointer[[]subscriber]

	rawQ     atomic.Pointer[queue.Bounded[domain.Sample]]
	persistQ atomic.Pointer[queue.Bounded[persistItem]]
	stats    atomic.Pointer[runStats]
	live     atomic.Bool
	gen      atomic.Uint64
}

type worker struct {
	stage Stage
	done  chan struct{}
}

// runStats holds the counters of one Start/Stop cycle. Every field has a
// single writer stage.
type runStats struct {
	run uint64

	ingest  *RateCounter
	process *RateCounter
	persist *RateCounter

	droppedSamples atomic.Int64
	persistDrops   atomic.Int64
	latencyMs      atomic.Uint64
	healthy        atomic.Bool
}

// newRunStats starts healthy. Only a failed save clears the flag, so a
// disabled sink reports healthy too.
func newRunStats(run uint64) *runStats {
	st := &runStats{
		run:     run,
		ingest:  NewRateCounter(),
		process: NewRateCounter(),
		persist: NewRateCounter(),
	}
	st.healthy.Store(true)
	return st
}

// New validates cfg and policy and returns a stopped pipeline. A nil sink is
// only accepted when persistence is disabled.
func New(cfg domain.SystemConfig, policy ports.Policy, src ports.SampleSource, sink ports.PersistenceSink, opts ...Option) (*Pipeline, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("system config: %w", err)
	}
	policy.ApplyDefaults()
	if src == nil {
		return nil, errors.New("sample source is required")
	}
	if sink == nil && policy.PersistenceEnabled {
		return nil, errors.New("persistence sink is required when persistence is enabled")
	}

	p := &Pipeline{
		cfg:       cfg,
		policy:    policy,
		source:    src,
		sink:      sink,
		obs:       nopObs{},
		sanitizer: processing.NewSanitizer(cfg),
		evaluator: alerts.NewDefaultEvaluator(cfg),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *Pipeline) Config() domain.SystemConfig { return p.cfg }

func (p *Pipeline) Policy() ports.Policy { return p.policy }

// IsRunning reports whether Start has been called without a matching Stop.
// A stage that ended with a fault does not change it.
func (p *Pipeline) IsRunning() bool { return p.live.Load() }

// Start allocates fresh queues and counters and launches the stages. It is a
// no-op when already running.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := newRunStats(p.gen.Add(1))
	raw := queue.NewBounded[domain.Sample](p.cfg.RawQueueCapacity)
	var persist *queue.Bounded[persistItem]
	if p.policy.PersistenceEnabled {
		persist = queue.NewBounded[persistItem](p.cfg.PersistQueueCapacity)
	}

	p.stats.Store(st)
	p.rawQ.Store(raw)
	p.persistQ.Store(persist)
	p.cancel = cancel
	p.workers = p.workers[:0]

	p.launch(ctx, st, StageIngest, func(ctx context.Context) error {
		return p.runIngest(ctx, raw, st)
	})
	p.launch(ctx, st, StageProcess, func(ctx context.Context) error {
		return p.runProcess(ctx, raw, persist, st)
	})
	if persist != nil {
		p.launch(ctx, st, StagePersist, func(ctx context.Context) error {
			return p.runPersist(ctx, persist, st)
		})
	}

	p.running = true
	p.live.Store(true)
	p.obs.SetGauge(ports.GaugePersistenceHealthy, boolGauge(st.healthy.Load()))
	p.obs.LogInfo("pipeline_started",
		ports.Field{Key: "ingest_rate_hz", Value: p.cfg.IngestRateHz},
		ports.Field{Key: "persistence", Value: p.policy.PersistenceEnabled})
}

// Stop cancels the stages, closes both queues and waits up to the join
// timeout for each stage. Stages that do not exit in time are abandoned. It
// is a no-op when already stopped.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}

	p.cancel()
	// stages abandoned after the join timeout must not reach later runs
	p.gen.Add(1)
	if q := p.rawQ.Load(); q != nil {
		q.Close()
	}
	if q := p.persistQ.Load(); q != nil {
		q.Close()
	}

	for _, w := range p.workers {
		timer := time.NewTimer(p.policy.JoinTimeout)
		select {
		case <-w.done:
		case <-timer.C:
			p.obs.LogError("stage_join_timeout",
				fmt.Errorf("%s stage still running after %s", w.stage, p.policy.JoinTimeout),
				ports.Field{Key: "stage", Value: string(w.stage)})
		}
		timer.Stop()
	}

	p.rawQ.Store(nil)
	p.persistQ.Store(nil)
	p.workers = p.workers[:0]
	p.cancel = nil
	p.running = false
	p.live.Store(false)
	p.obs.SetGauge(ports.GaugeRawQueueDepth, 0)
	p.obs.SetGauge(ports.GaugePersistQueueDepth, 0)
	p.obs.LogInfo("pipeline_stopped")
}

// SnapshotStatus never blocks and may be called from any goroutine. Counters
// of the last run stay readable after Stop; queue depths read zero.
func (p *Pipeline) SnapshotStatus() domain.PipelineStatus {
	status := domain.PipelineStatus{Timestamp: time.Now()}
	if q := p.rawQ.Load(); q != nil {
		status.RawQueueDepth = q.Len()
	}
	if q := p.persistQ.Load(); q != nil {
		status.PersistQueueDepth = q.Len()
	}

	st := p.stats.Load()
	if st == nil {
		status.PersistenceHealthy = true
		return status
	}
	status.DroppedSamples = st.droppedSamples.Load()
	status.PersistDrops = st.persistDrops.Load()
	status.IngestRateHz = st.ingest.RateHz()
	status.ProcessRateHz = st.process.RateHz()
	status.PersistRateHz = st.persist.RateHz()
	status.EndToEndLatencyMs = math.Float64frombits(st.latencyMs.Load())
	status.PersistenceHealthy = st.healthy.Load()
	return status
}

func (p *Pipeline) launch(ctx context.Context, st *runStats, stage Stage, fn func(context.Context) error) {
	done := make(chan struct{})
	p.workers = append(p.workers, worker{stage: stage, done: done})

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				p.fault(st, stage, fmt.Errorf("panic: %v", r))
			}
		}()
		if err := fn(ctx); err != nil {
			p.fault(st, stage, err)
			return
		}
		p.obs.LogInfo("stage_exited", ports.Field{Key: "stage", Value: string(stage)})
	}()
}

func (p *Pipeline) fault(st *runStats, stage Stage, err error) {
	serr := &StageError{Stage: stage, Err: err}
	p.obs.IncCounter(ports.MetricStageFaults, 1)
	p.obs.LogCritical("stage_fault", serr, ports.Field{Key: "stage", Value: string(stage)})
	p.publishFault(st, serr)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}
