package processing

import (
	"math"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
)

const (
	MinAlpha = 0.01
	MaxAlpha = 1.0
)

// Processor applies an exponential moving average to each metric. It keeps
// running state and must only be driven from a single goroutine.
type Processor struct {
	alpha       float64
	initialized bool

	rpm         float64
	temperature float64
	vibration   float64
}

func NewProcessor(alpha float64) *Processor {
	return &Processor{alpha: ClampAlpha(alpha)}
}

// ClampAlpha bounds a smoothing factor to [MinAlpha, MaxAlpha].
func ClampAlpha(alpha float64) float64 {
	switch {
	case math.IsNaN(alpha):
		return MinAlpha
	case alpha < MinAlpha:
		return MinAlpha
	case alpha > MaxAlpha:
		return MaxAlpha
	default:
		return alpha
	}
}

func (p *Processor) Alpha() float64 { return p.alpha }

// Process folds s into the running averages. The first sample seeds the
// averages with its raw values.
func (p *Processor) Process(s domain.Sample) domain.Frame {
	if !p.initialized {
		p.rpm = s.RPM
		p.temperature = s.TemperatureC
		p.vibration = s.VibrationMmS
		p.initialized = true
	} else {
		p.rpm = ema(p.alpha, s.RPM, p.rpm)
		p.temperature = ema(p.alpha, s.TemperatureC, p.temperature)
		p.vibration = ema(p.alpha, s.VibrationMmS, p.vibration)
	}

	return domain.Frame{
		Timestamp:           s.Timestamp,
		RPM:                 s.RPM,
		TemperatureC:        s.TemperatureC,
		VibrationMmS:        s.VibrationMmS,
		RPMSmoothed:         p.rpm,
		TemperatureSmoothed: p.temperature,
		VibrationSmoothed:   p.vibration,
	}
}

// Reset drops the running state so the next sample seeds it again.
func (p *Processor) Reset() {
	p.initialized = false
	p.rpm, p.temperature, p.vibration = 0, 0, 0
}

func ema(alpha, x, prev float64) float64 {
	return alpha*x + (1-alpha)*prev
}
