// Package processing cleans raw samples and smooths them into frames.
package processing

import (
	"math"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
)

// Sanitizer clamps samples into the configured physical ranges.
type Sanitizer struct {
	cfg domain.SystemConfig
}

func NewSanitizer(cfg domain.SystemConfig) *Sanitizer {
	return &Sanitizer{cfg: cfg}
}

func (s *Sanitizer) Sanitize(in domain.Sample) domain.Sample {
	return domain.Sample{
		Timestamp:    in.Timestamp,
		RPM:          clamp(in.RPM, s.cfg.RPMMin, s.cfg.RPMMax),
		TemperatureC: clamp(in.TemperatureC, s.cfg.TemperatureMin, s.cfg.TemperatureMax),
		VibrationMmS: clamp(in.VibrationMmS, s.cfg.VibrationMin, s.cfg.VibrationMax),
	}
}

// clamp maps NaN and ±Inf to min; everything else is bounded to [min, max].
func clamp(v, min, max float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
