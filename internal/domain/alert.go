package domain

import (
	"fmt"
	"strings"
	"time"
)

// Severity orders alerts; a higher value is more severe.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "Info"
	case SeverityWarning:
		return "Warning"
	case SeverityCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// ParseSeverity accepts the names produced by String, case-insensitively.
func ParseSeverity(v string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "info":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "critical", "crit":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", v)
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// AlertEvent is an immutable alert fact raised for one metric of one frame.
type AlertEvent struct {
	Timestamp time.Time `json:"ts"`
	Severity  Severity  `json:"severity"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
}
