package ports

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)
}

type Field struct {
	Key   string
	Value any
}

// Metric names understood by the Prometheus adapter. Unknown names are ignored.
const (
	MetricFramesProcessed = "sentinel_frames_processed_total"
	MetricAlertsRaised    = "sentinel_alerts_raised_total"
	MetricSamplesDropped  = "sentinel_samples_dropped_total"
	MetricPersistDropped  = "sentinel_persist_dropped_total"
	MetricPersistFailures = "sentinel_persist_failures_total"
	MetricStageFaults     = "sentinel_stage_faults_total"

	GaugeRawQueueDepth      = "sentinel_raw_queue_depth"
	GaugePersistQueueDepth  = "sentinel_persist_queue_depth"
	GaugeIngestRate         = "sentinel_ingest_rate_hz"
	GaugeProcessRate        = "sentinel_process_rate_hz"
	GaugePersistRate        = "sentinel_persist_rate_hz"
	GaugeLatencyMs          = "sentinel_latency_ms"
	GaugePersistenceHealthy = "sentinel_persistence_healthy"
	GaugeProcessRSS         = "sentinel_process_rss_bytes"

	LatencySinkWrite = "sentinel_sink_write_seconds"
)
