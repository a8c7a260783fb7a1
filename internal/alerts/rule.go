// Package alerts turns frames into severity-tiered alert events.
package alerts

import (
	"fmt"
	"strings"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
)

// MetricKind selects which smoothed value of a frame a rule inspects.
type MetricKind int

const (
	MetricRPM MetricKind = iota
	MetricTemperature
	MetricVibration
)

// Value returns the smoothed value of the selected metric.
func (k MetricKind) Value(f domain.Frame) float64 {
	switch k {
	case MetricRPM:
		return f.RPMSmoothed
	case MetricTemperature:
		return f.TemperatureSmoothed
	case MetricVibration:
		return f.VibrationSmoothed
	default:
		return 0
	}
}

func (k MetricKind) String() string {
	switch k {
	case MetricRPM:
		return "rpm"
	case MetricTemperature:
		return "temperature"
	case MetricVibration:
		return "vibration"
	default:
		return fmt.Sprintf("MetricKind(%d)", int(k))
	}
}

func (k MetricKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *MetricKind) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "rpm":
		*k = MetricRPM
	case "temperature", "temp":
		*k = MetricTemperature
	case "vibration", "vib":
		*k = MetricVibration
	default:
		return fmt.Errorf("unknown metric %q", string(b))
	}
	return nil
}

// Comparison is the direction in which a threshold is crossed.
type Comparison int

const (
	GreaterThan Comparison = iota
	LessThan
)

func (c Comparison) String() string {
	if c == LessThan {
		return "<"
	}
	return ">"
}

func (c Comparison) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Comparison) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case ">", "gt", "greater_than":
		*c = GreaterThan
	case "<", "lt", "less_than":
		*c = LessThan
	default:
		return fmt.Errorf("unknown comparison %q", string(b))
	}
	return nil
}

// Rule is one threshold check. Rules are plain values so they can be loaded
// from configuration and compared in tests.
type Rule struct {
	Metric     string          `yaml:"metric"`
	Severity   domain.Severity `yaml:"severity"`
	Threshold  float64         `yaml:"threshold"`
	Comparison Comparison      `yaml:"comparison"`
	Selector   MetricKind      `yaml:"selector"`
	Message    string          `yaml:"message"`
}

func High(metric string, sev domain.Severity, threshold float64, sel MetricKind, msg string) Rule {
	return Rule{Metric: metric, Severity: sev, Threshold: threshold, Comparison: GreaterThan, Selector: sel, Message: msg}
}

func Low(metric string, sev domain.Severity, threshold float64, sel MetricKind, msg string) Rule {
	return Rule{Metric: metric, Severity: sev, Threshold: threshold, Comparison: LessThan, Selector: sel, Message: msg}
}

// Evaluate reports whether f crosses the rule's threshold and, if so, the
// resulting event.
func (r Rule) Evaluate(f domain.Frame) (domain.AlertEvent, bool) {
	v := r.Selector.Value(f)

	var triggered bool
	switch r.Comparison {
	case GreaterThan:
		triggered = v > r.Threshold
	case LessThan:
		triggered = v < r.Threshold
	}
	if !triggered {
		return domain.AlertEvent{}, false
	}

	return domain.AlertEvent{
		Timestamp: f.Timestamp,
		Severity:  r.Severity,
		Metric:    r.Metric,
		Value:     v,
		Threshold: r.Threshold,
		Message:   r.Message,
	}, true
}

func (r Rule) Validate() error {
	if strings.TrimSpace(r.Metric) == "" {
		return fmt.Errorf("alert rule: metric name is required")
	}
	if r.Selector < MetricRPM || r.Selector > MetricVibration {
		return fmt.Errorf("alert rule %s: invalid selector %d", r.Metric, int(r.Selector))
	}
	if r.Severity < domain.SeverityInfo || r.Severity > domain.SeverityCritical {
		return fmt.Errorf("alert rule %s: invalid severity %d", r.Metric, int(r.Severity))
	}
	return nil
}
