package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

type PromObs struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the sentinel collectors on reg (the default registerer
// when nil) and logs through log (a no-op logger when nil).
func NewPromObs(reg prometheus.Registerer, log *zap.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if log == nil {
		log = zap.NewNop()
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	counters := map[string]prometheus.Counter{
		ports.MetricFramesProcessed: counter(ports.MetricFramesProcessed, "Frames produced by the process stage."),
		ports.MetricAlertsRaised:    counter(ports.MetricAlertsRaised, "Alert events raised after per-metric dedup."),
		ports.MetricSamplesDropped:  counter(ports.MetricSamplesDropped, "Samples lost to raw queue backpressure or read timeouts."),
		ports.MetricPersistDropped:  counter(ports.MetricPersistDropped, "Persist items dropped due to backpressure or unhealthy persistence."),
		ports.MetricPersistFailures: counter(ports.MetricPersistFailures, "Sink write failures that disabled persistence for a run."),
		ports.MetricStageFaults:     counter(ports.MetricStageFaults, "Fault events emitted by pipeline stages."),
	}
	gauges := map[string]prometheus.Gauge{
		ports.GaugeRawQueueDepth:      gauge(ports.GaugeRawQueueDepth, "Samples waiting in the raw queue."),
		ports.GaugePersistQueueDepth:  gauge(ports.GaugePersistQueueDepth, "Items waiting in the persist queue."),
		ports.GaugeIngestRate:         gauge(ports.GaugeIngestRate, "Samples read per second."),
		ports.GaugeProcessRate:        gauge(ports.GaugeProcessRate, "Frames processed per second."),
		ports.GaugePersistRate:        gauge(ports.GaugePersistRate, "Items persisted per second."),
		ports.GaugeLatencyMs:          gauge(ports.GaugeLatencyMs, "Smoothed sample-to-frame latency in milliseconds."),
		ports.GaugePersistenceHealthy: gauge(ports.GaugePersistenceHealthy, "1 while the sink accepts writes, 0 after a failure."),
		ports.GaugeProcessRSS:         gauge(ports.GaugeProcessRSS, "Resident set size of the process."),
	}
	sinkWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.LatencySinkWrite,
		Help:    "Duration of a single sink write.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	for _, c := range counters {
		reg.MustRegister(c)
	}
	for _, g := range gauges {
		reg.MustRegister(g)
	}
	reg.MustRegister(sinkWrite)

	return &PromObs{
		log:      log,
		counters: counters,
		gauges:   gauges,
		histos: map[string]prometheus.Observer{
			ports.LatencySinkWrite: sinkWrite,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err), zap.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
