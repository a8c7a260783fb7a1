package alerts

import (
	"strings"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
)

// Metric names used by the default rule set.
const (
	MetricNameRPM         = "RPM"
	MetricNameTemperature = "Temp"
	MetricNameVibration   = "Vibration"
)

// DefaultRules derives the stock rule set from the machine's physical ranges:
// critical at the hard maximum, warning at 90% of it (85% for vibration) and a
// low-speed warning at the rpm minimum.
func DefaultRules(cfg domain.SystemConfig) []Rule {
	return []Rule{
		High(MetricNameRPM, domain.SeverityCritical, cfg.RPMMax, MetricRPM, "RPM above critical limit"),
		High(MetricNameRPM, domain.SeverityWarning, cfg.RPMMax*0.9, MetricRPM, "RPM high"),
		Low(MetricNameRPM, domain.SeverityWarning, cfg.RPMMin, MetricRPM, "RPM low"),
		High(MetricNameTemperature, domain.SeverityCritical, cfg.TemperatureMax, MetricTemperature, "Temperature critical"),
		High(MetricNameTemperature, domain.SeverityWarning, cfg.TemperatureMax*0.9, MetricTemperature, "Temperature high"),
		High(MetricNameVibration, domain.SeverityCritical, cfg.VibrationMax, MetricVibration, "Vibration critical"),
		High(MetricNameVibration, domain.SeverityWarning, cfg.VibrationMax*0.85, MetricVibration, "Vibration high"),
	}
}

// Evaluator applies an immutable rule set and keeps at most one event per
// metric, the most severe one.
type Evaluator struct {
	rules []Rule
}

func NewEvaluator(rules []Rule) *Evaluator {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Evaluator{rules: cp}
}

// NewDefaultEvaluator is NewEvaluator(DefaultRules(cfg)).
func NewDefaultEvaluator(cfg domain.SystemConfig) *Evaluator {
	return NewEvaluator(DefaultRules(cfg))
}

func (e *Evaluator) Rules() []Rule {
	cp := make([]Rule, len(e.rules))
	copy(cp, e.rules)
	return cp
}

// Evaluate returns the strongest triggered alert per metric name, compared
// case-insensitively. On equal severity the later rule wins. Callers must not
// rely on the order of the result.
func (e *Evaluator) Evaluate(f domain.Frame) []domain.AlertEvent {
	var (
		strongest map[string]int
		out       []domain.AlertEvent
	)

	for _, r := range e.rules {
		ev, ok := r.Evaluate(f)
		if !ok {
			continue
		}
		if strongest == nil {
			strongest = make(map[string]int, 3)
		}
		key := strings.ToLower(ev.Metric)
		idx, seen := strongest[key]
		if !seen {
			strongest[key] = len(out)
			out = append(out, ev)
			continue
		}
		if ev.Severity >= out[idx].Severity {
			out[idx] = ev
		}
	}
	return out
}
