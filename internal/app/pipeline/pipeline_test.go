package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

func TestPipelineProcessesFrames(t *testing.T) {
	cfg := testConfig(50)
	snk := &recordingSink{}
	p := newTestPipeline(t, cfg, ports.DefaultPolicy(), &stubSource{}, snk)

	var frames atomic.Int64
	p.Subscribe(ObserverFuncs{Frame: func(domain.Frame) { frames.Add(1) }})

	p.Start()
	if !p.IsRunning() {
		t.Fatalf("expected pipeline to be running")
	}
	time.Sleep(250 * time.Millisecond)
	p.Stop()

	if frames.Load() == 0 {
		t.Fatalf("expected processed frames, got 0")
	}
	if p.IsRunning() {
		t.Fatalf("expected pipeline to be stopped")
	}
	st := p.SnapshotStatus()
	if st.RawQueueDepth != 0 || st.PersistQueueDepth != 0 {
		t.Fatalf("expected zero depths after stop, got raw=%d persist=%d", st.RawQueueDepth, st.PersistQueueDepth)
	}
	if !st.PersistenceHealthy {
		t.Fatalf("expected healthy persistence with a working sink")
	}
	if snk.telemetryCount() == 0 {
		t.Fatalf("expected sink to receive telemetry")
	}
}

func TestPipelineStartStopIdempotent(t *testing.T) {
	p := newTestPipeline(t, testConfig(100), ports.DefaultPolicy(), &stubSource{}, &recordingSink{})

	p.Stop()
	p.Start()
	p.Start()
	if !p.IsRunning() {
		t.Fatalf("expected running after double start")
	}
	p.Stop()
	p.Stop()
	if p.IsRunning() {
		t.Fatalf("expected stopped after double stop")
	}

	// a second run starts from fresh counters
	p.Start()
	defer p.Stop()
	if got := p.SnapshotStatus().DroppedSamples; got != 0 {
		t.Fatalf("expected fresh drop counter, got %d", got)
	}
}

func TestPipelineSnapshotBeforeStart(t *testing.T) {
	p := newTestPipeline(t, testConfig(100), ports.DefaultPolicy(), &stubSource{}, &recordingSink{})
	st := p.SnapshotStatus()
	if st.RawQueueDepth != 0 || st.DroppedSamples != 0 || st.IngestRateHz != 0 {
		t.Fatalf("unexpected status before start: %+v", st)
	}
	if !st.PersistenceHealthy {
		t.Fatalf("expected healthy persistence before start")
	}
}

func TestPipelineFailingSinkDegradesHealth(t *testing.T) {
	snk := &recordingSink{err: errors.New("db down")}
	p := newTestPipeline(t, testConfig(200), ports.DefaultPolicy(), &stubSource{}, snk)

	var (
		frames atomic.Int64
		faults = make(chan error, 16)
	)
	p.Subscribe(ObserverFuncs{
		Frame: func(domain.Frame) { frames.Add(1) },
		Fault: func(err error) {
			select {
			case faults <- err:
			default:
			}
		},
	})

	p.Start()
	defer p.Stop()

	waitFor(t, 2*time.Second, func() bool { return !p.SnapshotStatus().PersistenceHealthy })

	select {
	case err := <-faults:
		var serr *StageError
		if !errors.As(err, &serr) || serr.Stage != StagePersist {
			t.Fatalf("expected persist stage fault, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a fault event")
	}

	before := frames.Load()
	waitFor(t, 2*time.Second, func() bool { return frames.Load() > before+5 })

	waitFor(t, 2*time.Second, func() bool { return p.SnapshotStatus().PersistDrops > 0 })
	if got := snk.attempts(); got != 1 {
		t.Fatalf("expected exactly one sink attempt after failure, got %d", got)
	}
	if len(faults) != 0 {
		t.Fatalf("expected a single fault for the failed sink, got %d more", len(faults))
	}
}

func TestPipelinePersistenceDisabled(t *testing.T) {
	pol := ports.DefaultPolicy()
	pol.PersistenceEnabled = false
	p := newTestPipeline(t, testConfig(200), pol, &stubSource{}, nil)
	if !p.SnapshotStatus().PersistenceHealthy {
		t.Fatalf("expected healthy persistence before start")
	}

	var frames atomic.Int64
	p.Subscribe(ObserverFuncs{Frame: func(domain.Frame) { frames.Add(1) }})

	p.Start()
	defer p.Stop()

	waitFor(t, 2*time.Second, func() bool { return frames.Load() > 3 })
	st := p.SnapshotStatus()
	if st.PersistQueueDepth != 0 || st.PersistDrops != 0 {
		t.Fatalf("expected no persist activity, got %+v", st)
	}
	if !st.PersistenceHealthy {
		t.Fatalf("a disabled sink must not report unhealthy persistence")
	}
}

func TestPipelineSourceErrorEndsIngestOnly(t *testing.T) {
	src := &stubSource{err: errors.New("sensor unplugged")}
	p := newTestPipeline(t, testConfig(100), ports.DefaultPolicy(), src, &recordingSink{})

	faults := make(chan error, 4)
	p.Subscribe(ObserverFuncs{Fault: func(err error) { faults <- err }})

	p.Start()
	defer p.Stop()

	select {
	case err := <-faults:
		var serr *StageError
		if !errors.As(err, &serr) || serr.Stage != StageIngest {
			t.Fatalf("expected ingest fault, got %v", err)
		}
		if !errors.Is(err, src.err) {
			t.Fatalf("expected fault to wrap source error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a fault event")
	}
	if !p.IsRunning() {
		t.Fatalf("a stage fault must not stop the pipeline")
	}
}

func TestPipelineObserverPanicBecomesFault(t *testing.T) {
	p := newTestPipeline(t, testConfig(100), ports.DefaultPolicy(), &stubSource{}, &recordingSink{})

	faults := make(chan error, 4)
	p.Subscribe(ObserverFuncs{
		Frame: func(domain.Frame) { panic("boom") },
		Fault: func(err error) { faults <- err },
	})

	p.Start()
	defer p.Stop()

	select {
	case err := <-faults:
		var serr *StageError
		if !errors.As(err, &serr) || serr.Stage != StageProcess {
			t.Fatalf("expected process fault, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a fault event")
	}
}

func TestPipelineSinkPanicMarksUnhealthy(t *testing.T) {
	snk := &recordingSink{panicMsg: "driver bug"}
	p := newTestPipeline(t, testConfig(200), ports.DefaultPolicy(), &stubSource{}, snk)

	p.Start()
	defer p.Stop()

	waitFor(t, 2*time.Second, func() bool { return !p.SnapshotStatus().PersistenceHealthy })
}

func TestPipelineBackpressureDropsSamples(t *testing.T) {
	cfg := testConfig(1000)
	cfg.RawQueueCapacity = 1
	pol := ports.DefaultPolicy()
	pol.EnqueueTimeout = time.Millisecond
	p := newTestPipeline(t, cfg, pol, &stubSource{}, &recordingSink{})

	p.Subscribe(ObserverFuncs{Frame: func(domain.Frame) { time.Sleep(20 * time.Millisecond) }})

	p.Start()
	defer p.Stop()

	waitFor(t, 2*time.Second, func() bool { return p.SnapshotStatus().DroppedSamples > 0 })
	if depth := p.SnapshotStatus().RawQueueDepth; depth > 1 {
		t.Fatalf("raw queue exceeded its capacity: %d", depth)
	}
}

func TestPipelineReadTimeoutCountsDrop(t *testing.T) {
	pol := ports.DefaultPolicy()
	pol.ReadTimeout = 5 * time.Millisecond
	p := newTestPipeline(t, testConfig(100), pol, &stubSource{block: true}, &recordingSink{})

	var faults atomic.Int64
	p.Subscribe(ObserverFuncs{Fault: func(error) { faults.Add(1) }})

	p.Start()
	waitFor(t, 2*time.Second, func() bool { return p.SnapshotStatus().DroppedSamples > 1 })
	p.Stop()

	if faults.Load() != 0 {
		t.Fatalf("read timeouts must not fault the ingest stage")
	}
}

func TestPipelineStopUnblocksHungSource(t *testing.T) {
	p := newTestPipeline(t, testConfig(100), ports.DefaultPolicy(), &stubSource{block: true}, &recordingSink{})
	p.Start()
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("stop did not return")
	}
}

func TestPipelinePersistsAlerts(t *testing.T) {
	snk := &recordingSink{}
	src := &stubSource{sample: domain.Sample{RPM: 3100, TemperatureC: 70, VibrationMmS: 3}}
	p := newTestPipeline(t, testConfig(200), ports.DefaultPolicy(), src, snk)

	var raised atomic.Int64
	p.Subscribe(ObserverFuncs{Alert: func(a domain.AlertEvent) {
		if a.Metric == "RPM" && a.Severity == domain.SeverityWarning {
			raised.Add(1)
		}
	}})

	p.Start()
	waitFor(t, 2*time.Second, func() bool { return snk.alertCount() > 0 })
	p.Stop()

	if raised.Load() == 0 {
		t.Fatalf("expected rpm warning notifications")
	}
}

func TestPipelineUnsubscribe(t *testing.T) {
	p := newTestPipeline(t, testConfig(200), ports.DefaultPolicy(), &stubSource{}, &recordingSink{})

	var frames atomic.Int64
	unsubscribe := p.Subscribe(ObserverFuncs{Frame: func(domain.Frame) { frames.Add(1) }})
	unsubscribe()

	p.Start()
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	if frames.Load() != 0 {
		t.Fatalf("expected no frames after unsubscribe, got %d", frames.Load())
	}
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	if _, err := New(testConfig(10), ports.DefaultPolicy(), nil, &recordingSink{}); err == nil {
		t.Fatalf("expected error for nil source")
	}
	if _, err := New(testConfig(10), ports.DefaultPolicy(), &stubSource{}, nil); err == nil {
		t.Fatalf("expected error for nil sink with persistence enabled")
	}
	bad := testConfig(10)
	bad.RPMMin, bad.RPMMax = 10, 5
	if _, err := New(bad, ports.DefaultPolicy(), &stubSource{}, &recordingSink{}); err == nil {
		t.Fatalf("expected invalid config to be rejected")
	}
}

func TestPipelinePreservesOrder(t *testing.T) {
	src := &sequenceSource{base: time.Now(), rpm: 3100}
	snk := &orderedSink{}
	p := newTestPipeline(t, testConfig(200), ports.DefaultPolicy(), src, snk)

	var (
		mu       sync.Mutex
		observed []time.Time
	)
	p.Subscribe(ObserverFuncs{Frame: func(f domain.Frame) {
		mu.Lock()
		observed = append(observed, f.Timestamp)
		mu.Unlock()
	}})

	p.Start()
	waitFor(t, 2*time.Second, func() bool { return snk.count() > 40 })
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(observed); i++ {
		if !observed[i].After(observed[i-1]) {
			t.Fatalf("frame %d observed out of order: %s after %s", i, observed[i], observed[i-1])
		}
	}

	var (
		lastFrame time.Time
		pending   []time.Time
		frames    int
	)
	// every frame carries exactly one rpm warning, persisted ahead of it
	for i, e := range snk.snapshot() {
		if e.alert {
			if !e.ts.After(lastFrame) {
				t.Fatalf("entry %d: alert %s persisted after a later frame %s", i, e.ts, lastFrame)
			}
			pending = append(pending, e.ts)
			continue
		}
		if !e.ts.After(lastFrame) {
			t.Fatalf("entry %d: frame %s persisted after %s", i, e.ts, lastFrame)
		}
		for _, a := range pending {
			if !a.Equal(e.ts) {
				t.Fatalf("entry %d: alert %s does not belong to frame %s", i, a, e.ts)
			}
		}
		if len(pending) == 0 {
			t.Fatalf("entry %d: frame %s persisted without its rpm alert", i, e.ts)
		}
		pending = pending[:0]
		lastFrame = e.ts
		frames++
	}
	if frames == 0 {
		t.Fatalf("expected persisted frames")
	}
}

func TestPipelineIngestKeepsCadenceWithSlowReads(t *testing.T) {
	const hz = 50
	interval := time.Second / hz
	src := &slowSource{delay: interval * 8 / 10}
	p := newTestPipeline(t, testConfig(hz), ports.DefaultPolicy(), src, &recordingSink{})

	p.Start()
	time.Sleep(time.Second)
	p.Stop()

	// a relative sleep after each read would land near hz/1.8
	got := src.reads.Load()
	if got < hz*8/10 || got > hz+5 {
		t.Fatalf("expected about %d reads in one second, got %d", hz, got)
	}
}

func TestPipelineStaleRunDoesNotPublish(t *testing.T) {
	p := newTestPipeline(t, testConfig(100), ports.DefaultPolicy(), &stubSource{}, &recordingSink{})

	var frames, alerts, faults atomic.Int64
	p.Subscribe(ObserverFuncs{
		Frame: func(f domain.Frame) {
			if f.RPM < 0 {
				frames.Add(1)
			}
		},
		Alert: func(a domain.AlertEvent) {
			if a.Metric == "marker" {
				alerts.Add(1)
			}
		},
		Fault: func(error) { faults.Add(1) },
	})

	p.Start()
	stale := p.stats.Load()
	p.Stop()
	p.Start()
	defer p.Stop()

	p.publishFrame(stale, domain.Frame{RPM: -1})
	p.publishAlert(stale, domain.AlertEvent{Metric: "marker"})
	p.publishFault(stale, errors.New("late"))
	if frames.Load() != 0 || alerts.Load() != 0 || faults.Load() != 0 {
		t.Fatalf("stale run delivered frames=%d alerts=%d faults=%d", frames.Load(), alerts.Load(), faults.Load())
	}

	p.publishFrame(p.stats.Load(), domain.Frame{RPM: -1})
	if frames.Load() != 1 {
		t.Fatalf("current run must still deliver, got %d", frames.Load())
	}
}

func TestPipelineAbandonedStageDoesNotReachNextRun(t *testing.T) {
	pol := ports.DefaultPolicy()
	pol.JoinTimeout = 20 * time.Millisecond
	src := &stubSource{sample: domain.Sample{RPM: 3100, TemperatureC: 70, VibrationMmS: 3}}
	p := newTestPipeline(t, testConfig(100), pol, src, &recordingSink{})

	var (
		once     sync.Once
		release  = make(chan struct{})
		released sync.Once
		blocked  = make(chan struct{})
		restart  atomic.Int64
		stale    atomic.Int64
	)
	unblock := func() { released.Do(func() { close(release) }) }
	defer unblock()

	p.Subscribe(ObserverFuncs{
		Frame: func(domain.Frame) {
			once.Do(func() {
				close(blocked)
				<-release
			})
		},
		Alert: func(a domain.AlertEvent) {
			if at := restart.Load(); at == 0 || a.Timestamp.UnixNano() < at {
				stale.Add(1)
			}
		},
	})

	p.Start()
	select {
	case <-blocked:
	case <-time.After(2 * time.Second):
		t.Fatalf("process stage never delivered a frame")
	}
	p.Stop()

	restart.Store(time.Now().UnixNano())
	p.Start()
	unblock()
	time.Sleep(100 * time.Millisecond)
	p.Stop()

	if got := stale.Load(); got != 0 {
		t.Fatalf("abandoned process stage delivered %d alerts to the next run", got)
	}
}

func testConfig(hz int) domain.SystemConfig {
	cfg := domain.DefaultSystemConfig()
	cfg.IngestRateHz = hz
	return cfg
}

func newTestPipeline(t *testing.T, cfg domain.SystemConfig, pol ports.Policy, src ports.SampleSource, snk ports.PersistenceSink) *Pipeline {
	t.Helper()
	p, err := New(cfg, pol, src, snk)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	t.Cleanup(p.Stop)
	return p
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

type stubSource struct {
	sample domain.Sample
	err    error
	block  bool
}

func (s *stubSource) ReadSample(ctx context.Context) (domain.Sample, error) {
	if s.block {
		<-ctx.Done()
		return domain.Sample{}, ctx.Err()
	}
	if s.err != nil {
		return domain.Sample{}, s.err
	}
	out := s.sample
	if out.RPM == 0 {
		out = domain.Sample{RPM: 1800, TemperatureC: 70, VibrationMmS: 3}
	}
	out.Timestamp = time.Now()
	return out, nil
}

func (s *stubSource) Close() error { return nil }

type recordingSink struct {
	mu        sync.Mutex
	err       error
	panicMsg  string
	calls     int
	telemetry []domain.Frame
	alerts    []domain.AlertEvent
}

func (r *recordingSink) SaveTelemetry(_ context.Context, f domain.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	if r.err != nil {
		return r.err
	}
	r.telemetry = append(r.telemetry, f)
	return nil
}

func (r *recordingSink) SaveAlert(_ context.Context, a domain.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recordingSink) Name() string { return "recording" }
func (r *recordingSink) Close() error { return nil }

func (r *recordingSink) telemetryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.telemetry)
}

func (r *recordingSink) alertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func (r *recordingSink) attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type sequenceSource struct {
	base time.Time
	rpm  float64
	n    atomic.Int64
}

func (s *sequenceSource) ReadSample(context.Context) (domain.Sample, error) {
	n := s.n.Add(1)
	return domain.Sample{
		Timestamp:    s.base.Add(time.Duration(n) * time.Millisecond),
		RPM:          s.rpm,
		TemperatureC: 70,
		VibrationMmS: 3,
	}, nil
}

func (s *sequenceSource) Close() error { return nil }

type slowSource struct {
	delay time.Duration
	reads atomic.Int64
}

func (s *slowSource) ReadSample(ctx context.Context) (domain.Sample, error) {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return domain.Sample{}, ctx.Err()
	case <-timer.C:
	}
	s.reads.Add(1)
	return domain.Sample{Timestamp: time.Now(), RPM: 1800, TemperatureC: 70, VibrationMmS: 3}, nil
}

func (s *slowSource) Close() error { return nil }

type persisted struct {
	alert bool
	ts    time.Time
}

type orderedSink struct {
	mu      sync.Mutex
	entries []persisted
}

func (o *orderedSink) SaveTelemetry(_ context.Context, f domain.Frame) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, persisted{ts: f.Timestamp})
	return nil
}

func (o *orderedSink) SaveAlert(_ context.Context, a domain.AlertEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, persisted{alert: true, ts: a.Timestamp})
	return nil
}

func (o *orderedSink) Name() string { return "ordered" }
func (o *orderedSink) Close() error { return nil }

func (o *orderedSink) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

func (o *orderedSink) snapshot() []persisted {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]persisted(nil), o.entries...)
}
