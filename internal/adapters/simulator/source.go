// Package simulator produces synthetic machine telemetry: slow sine waves
// with noise and occasional spikes that cross the default alert limits.
package simulator

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

const Status = "SIM"

type Config struct {
	// Seed makes the noise reproducible. Zero picks a random seed.
	Seed            uint64  `yaml:"seed"`
	RPMBase         float64 `yaml:"rpm_base"`
	TemperatureBase float64 `yaml:"temperature_base"`
	VibrationBase   float64 `yaml:"vibration_base"`
	// SpikeProbability is the per-sample chance of a combined spike.
	SpikeProbability float64 `yaml:"spike_probability"`
	// VibrationSpikeProbability is the per-sample chance of a vibration-only spike.
	VibrationSpikeProbability float64 `yaml:"vibration_spike_probability"`
}

func (c *Config) ApplyDefaults() {
	if c.RPMBase == 0 {
		c.RPMBase = 1800
	}
	if c.TemperatureBase == 0 {
		c.TemperatureBase = 70
	}
	if c.VibrationBase == 0 {
		c.VibrationBase = 3.2
	}
	if c.SpikeProbability == 0 {
		c.SpikeProbability = 0.002
	}
	if c.VibrationSpikeProbability == 0 {
		c.VibrationSpikeProbability = 0.003
	}
}

type Source struct {
	cfg   Config
	now   func() time.Time
	start time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSource(cfg Config) *Source {
	return newSource(cfg, time.Now)
}

func newSource(cfg Config, now func() time.Time) *Source {
	cfg.ApplyDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Source{
		cfg:   cfg,
		now:   now,
		start: now(),
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// ReadSample computes the waveform at the time elapsed since the source was
// created. It never blocks.
func (s *Source) ReadSample(ctx context.Context) (domain.Sample, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sample{}, err
	}
	now := s.now()
	t := now.Sub(s.start).Seconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	rpm := s.cfg.RPMBase +
		600*math.Sin(t*0.65) +
		250*math.Sin(t*1.2) +
		s.noise(35)
	temp := s.cfg.TemperatureBase +
		12*math.Sin(t*0.2) +
		4*math.Sin(t*0.7) +
		s.noise(0.6)
	vib := s.cfg.VibrationBase +
		1.2*math.Sin(t*1.6) +
		0.6*math.Sin(t*2.1) +
		s.noise(0.08)

	if s.rng.Float64() < s.cfg.SpikeProbability {
		rpm += 900
		temp += 8
		vib += 2.5
	}
	if s.rng.Float64() < s.cfg.VibrationSpikeProbability {
		vib += 3.5
	}

	return domain.Sample{
		Timestamp:    now.UTC(),
		RPM:          rpm,
		TemperatureC: temp,
		VibrationMmS: math.Max(0, vib),
	}, nil
}

func (s *Source) noise(amplitude float64) float64 {
	return (s.rng.Float64()*2 - 1) * amplitude
}

func (s *Source) Status() string { return Status }

// OnStatusChange is a no-op; the simulator status never changes.
func (s *Source) OnStatusChange(func(string)) {}

func (s *Source) Close() error { return nil }

var (
	_ ports.SampleSource   = (*Source)(nil)
	_ ports.StatusReporter = (*Source)(nil)
)
