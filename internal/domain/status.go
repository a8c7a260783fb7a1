package domain

import "time"

// PipelineStatus is a point-in-time view of the telemetry pipeline.
type PipelineStatus struct {
	Timestamp          time.Time `json:"ts"`
	RawQueueDepth      int       `json:"raw_queue_depth"`
	PersistQueueDepth  int       `json:"persist_queue_depth"`
	DroppedSamples     int64     `json:"dropped_samples"`
	PersistDrops       int64     `json:"persist_drops"`
	IngestRateHz       float64   `json:"ingest_rate_hz"`
	ProcessRateHz      float64   `json:"process_rate_hz"`
	PersistRateHz      float64   `json:"persist_rate_hz"`
	EndToEndLatencyMs  float64   `json:"end_to_end_latency_ms"`
	PersistenceHealthy bool      `json:"persistence_healthy"`
}

// RuntimeStatus wraps the pipeline snapshot with what the hosting runtime
// knows about its source and sink.
type RuntimeStatus struct {
	Pipeline        PipelineStatus `json:"pipeline"`
	Running         bool           `json:"running"`
	Source          string         `json:"source"`
	Sink            string         `json:"sink"`
	ProcessRSSBytes uint64         `json:"process_rss_bytes,omitempty"`
}
