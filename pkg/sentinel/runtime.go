package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/journal"
	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/observability"
	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/opcua"
	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/simulator"
	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/sink"
	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/stream"
	"github.com/oscar1457/Industrial-Sentinel/internal/alerts"
	"github.com/oscar1457/Industrial-Sentinel/internal/app/config"
	"github.com/oscar1457/Industrial-Sentinel/internal/app/pipeline"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

// ErrRuntimeClosed is returned by Start after Shutdown.
var ErrRuntimeClosed = errors.New("sentinel: runtime closed")

const (
	gaugeInterval = time.Second
	openTimeout   = 10 * time.Second
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	source        Source
	sink          Sink
	observability Observability
	log           *zap.Logger
	observers     []Observer
	registerer    prometheus.Registerer
}

// WithSource injects a custom sample source (Modbus, MQTT, replayed files, ...).
// The runtime closes it on Shutdown.
func WithSource(src Source) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithSink injects a custom persistence sink. Persistence is enabled for the
// runtime regardless of the persistence section of the config.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithObservability replaces the Prometheus + zap observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

func WithLogger(log *zap.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.log = log
	}
}

// WithObserver subscribes obs to frames, alerts and stage faults.
func WithObserver(obs Observer) RuntimeOption {
	return func(o *runtimeOverrides) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithRegisterer registers the runtime metrics on reg instead of a private
// registry. /metrics serves reg when it is also a prometheus.Gatherer.
func WithRegisterer(reg prometheus.Registerer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registerer = reg
	}
}

// Runtime wires a source, the three-stage pipeline, a persistence sink, the
// live stream hub and the HTTP endpoints, and exposes lifecycle hooks for
// embedding the monitor inside any Go service.
type Runtime struct {
	cfg      *Config
	log      *zap.Logger
	obs      ports.Observability
	source   ports.SampleSource
	sink     ports.PersistenceSink
	pipe     *pipeline.Pipeline
	hub      *stream.Hub
	gatherer prometheus.Gatherer
	proc     *process.Process
	rss      atomic.Uint64

	mu      sync.Mutex
	started bool
	closed  bool
	srv     *http.Server
	addr    string
	cancel  context.CancelFunc
	bg      sync.WaitGroup
}

// NewRuntime bootstraps the adapters selected by cfg: the simulator or the
// OPC UA source, the configured persistence driver, Prometheus metrics and
// the stream hub. Options override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	log := overrides.log
	if log == nil {
		log = zap.NewNop()
	}

	reg := overrides.registerer
	if reg == nil {
		r := prometheus.NewRegistry()
		r.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		reg = r
	}
	gatherer, _ := reg.(prometheus.Gatherer)
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs(reg, log)
	}

	rt := &Runtime{
		cfg:      cfg,
		log:      log,
		obs:      obs,
		gatherer: gatherer,
	}

	var err error
	rt.source = overrides.source
	if rt.source == nil {
		rt.source, err = buildSource(cfg, log)
		if err != nil {
			return nil, err
		}
	}

	policy := cfg.Policy
	rt.sink = overrides.sink
	if rt.sink != nil {
		policy.PersistenceEnabled = true
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
		rt.sink, err = buildSink(ctx, cfg, log)
		cancel()
		if err != nil {
			_ = rt.source.Close()
			return nil, err
		}
	}

	evaluator := alerts.NewDefaultEvaluator(cfg.System)
	if len(cfg.Alerts.Rules) > 0 {
		evaluator = alerts.NewEvaluator(cfg.Alerts.Rules)
	}

	rt.pipe, err = pipeline.New(cfg.System, policy, rt.source, rt.sink,
		pipeline.WithObservability(obs),
		pipeline.WithEvaluator(evaluator))
	if err != nil {
		rt.closeAdapters()
		return nil, err
	}

	rt.hub, err = stream.New(cfg.Stream, log)
	if err != nil {
		rt.closeAdapters()
		return nil, err
	}
	rt.hub.SetStatusFunc(rt.Status)
	rt.pipe.Subscribe(rt.hub)
	for _, o := range overrides.observers {
		rt.pipe.Subscribe(o)
	}

	if sr, ok := rt.source.(ports.StatusReporter); ok {
		sr.OnStatusChange(func(status string) {
			log.Info("source_status", zap.String("status", status))
		})
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		rt.proc = p
	} else {
		log.Warn("process_stats_unavailable", zap.Error(err))
	}

	return rt, nil
}

func buildSource(cfg *Config, log *zap.Logger) (ports.SampleSource, error) {
	if cfg.UsesOPCUA() {
		src, err := opcua.NewSource(cfg.OPCUA, opcua.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("opcua source: %w", err)
		}
		return src, nil
	}
	return simulator.NewSource(cfg.Simulator), nil
}

func buildSink(ctx context.Context, cfg *Config, log *zap.Logger) (ports.PersistenceSink, error) {
	if !cfg.Persistence.Enabled {
		return sink.Nop{}, nil
	}

	switch cfg.Persistence.Driver {
	case config.DriverTimescale:
		ts, err := sink.OpenTimescale(ctx, cfg.Timescale.ConnString, cfg.Timescale.Tables)
		if err != nil {
			return nil, fmt.Errorf("open timescale: %w", err)
		}
		if cfg.Timescale.EnsureSchema {
			if err := ts.EnsureSchema(ctx, cfg.Timescale.Hypertable); err != nil {
				_ = ts.Close()
				return nil, fmt.Errorf("ensure schema: %w", err)
			}
		}
		return ts, nil
	case config.DriverRedis:
		rs, err := sink.OpenRedisStream(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		return rs, nil
	case config.DriverJournal:
		j, err := journal.Open(cfg.Journal.Dir)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		if st := j.Stats(); st.LatestAppended >= st.OldestUncommitted && st.LatestAppended > 0 {
			log.Info("journal_pending",
				zap.String("dir", j.Dir()),
				zap.Uint64("from", uint64(st.OldestUncommitted)),
				zap.Uint64("latest", uint64(st.LatestAppended)))
		}
		return j, nil
	default:
		return sink.Nop{}, nil
	}
}

// Start launches the pipeline, the HTTP server and the gauge loop. It returns
// immediately; call Run to block on a context instead.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRuntimeClosed
	}
	if r.started {
		return nil
	}

	ln, err := net.Listen("tcp", r.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", r.cfg.Metrics.Addr, err)
	}
	r.addr = ln.Addr().String()
	r.srv = &http.Server{
		Handler:           r.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.pipe.Start()

	r.bg.Add(3)
	go func() {
		defer r.bg.Done()
		if err := r.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error("http_server_exited", zap.Error(err))
		}
	}()
	go func() {
		defer r.bg.Done()
		r.hub.Run(ctx)
	}()
	go func() {
		defer r.bg.Done()
		r.recordResourceGauges(ctx, gaugeInterval)
	}()

	r.started = true
	r.log.Info("runtime_started",
		zap.String("addr", r.addr),
		zap.String("source", r.sourceStatus()),
		zap.String("sink", r.sink.Name()))
	return nil
}

// Run starts the runtime and blocks until ctx is cancelled, then shuts down
// gracefully. A failed start still releases the source and the sink.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return errors.Join(err, r.Shutdown(context.Background()))
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops the HTTP server and the pipeline, then closes the source and
// the sink. It is safe to call more than once.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if r.srv != nil {
		if err := r.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.pipe.Stop()
	r.bg.Wait()

	if err := r.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}
	if err := r.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sink %s: %w", r.sink.Name(), err))
	}
	r.log.Info("runtime_stopped")
	return errors.Join(errs...)
}

// Status never blocks on the pipeline stages.
func (r *Runtime) Status() RuntimeStatus {
	return RuntimeStatus{
		Pipeline:        r.pipe.SnapshotStatus(),
		Running:         r.pipe.IsRunning(),
		Source:          r.sourceStatus(),
		Sink:            r.sink.Name(),
		ProcessRSSBytes: r.rss.Load(),
	}
}

// Pipeline exposes the underlying pipeline, e.g. for extra subscriptions.
func (r *Runtime) Pipeline() *pipeline.Pipeline { return r.pipe }

// Hub exposes the live stream hub backing /series, /alerts and /ws.
func (r *Runtime) Hub() *stream.Hub { return r.hub }

// Addr is the bound HTTP address once Start has succeeded.
func (r *Runtime) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addr
}

func (r *Runtime) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !r.pipe.IsRunning() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("stopped"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(r.Status())
	})
	mux.HandleFunc("/series", r.hub.HandleSeries)
	mux.HandleFunc("/alerts", r.hub.HandleAlerts)
	mux.Handle("/ws", r.hub)
	return mux
}

func (r *Runtime) recordResourceGauges(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sampleGauges(ctx)
		}
	}
}

func (r *Runtime) sampleGauges(ctx context.Context) {
	st := r.pipe.SnapshotStatus()
	r.obs.SetGauge(ports.GaugeRawQueueDepth, float64(st.RawQueueDepth))
	r.obs.SetGauge(ports.GaugePersistQueueDepth, float64(st.PersistQueueDepth))
	r.obs.SetGauge(ports.GaugeIngestRate, st.IngestRateHz)
	r.obs.SetGauge(ports.GaugeProcessRate, st.ProcessRateHz)
	r.obs.SetGauge(ports.GaugePersistRate, st.PersistRateHz)
	if !math.IsNaN(st.EndToEndLatencyMs) {
		r.obs.SetGauge(ports.GaugeLatencyMs, st.EndToEndLatencyMs)
	}

	if r.proc == nil {
		return
	}
	mem, err := r.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return
	}
	r.rss.Store(mem.RSS)
	r.obs.SetGauge(ports.GaugeProcessRSS, float64(mem.RSS))
}

func (r *Runtime) sourceStatus() string {
	if sr, ok := r.source.(ports.StatusReporter); ok {
		return sr.Status()
	}
	return "custom"
}

func (r *Runtime) closeAdapters() {
	_ = r.source.Close()
	if r.sink != nil {
		_ = r.sink.Close()
	}
}
