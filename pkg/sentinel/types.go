package sentinel

import (
	"github.com/oscar1457/Industrial-Sentinel/internal/alerts"
	"github.com/oscar1457/Industrial-Sentinel/internal/app/pipeline"
	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

// Sample is one raw reading as produced by a Source.
type Sample = domain.Sample

// Frame is a sanitized sample with its smoothed values.
type Frame = domain.Frame

// AlertEvent is raised when a smoothed value crosses a rule threshold.
type AlertEvent = domain.AlertEvent

type Severity = domain.Severity

const (
	SeverityInfo     = domain.SeverityInfo
	SeverityWarning  = domain.SeverityWarning
	SeverityCritical = domain.SeverityCritical
)

// PipelineStatus is a lock-free snapshot of queue depths, rates and drops.
type PipelineStatus = domain.PipelineStatus

// RuntimeStatus is what /status serves.
type RuntimeStatus = domain.RuntimeStatus

// Source produces one sample per call (OPC UA, simulators, Modbus, MQTT, etc.).
type Source = ports.SampleSource

// Sink stores processed frames and alerts in any database or API.
type Sink = ports.PersistenceSink

// Observability emits metrics and logs about throughput, drops and faults.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Observer receives frames, alerts and stage faults as they happen.
type Observer = pipeline.Observer

// ObserverFuncs adapts plain functions to Observer.
type ObserverFuncs = pipeline.ObserverFuncs

// StageError is the error passed to Observer.OnFault.
type StageError = pipeline.StageError

// AlertRule is one threshold rule; see Config.Alerts.
type AlertRule = alerts.Rule
