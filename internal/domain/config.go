package domain

import (
	"errors"
	"fmt"
)

// SystemConfig holds the acquisition cadence, queue sizing, smoothing factor
// and physical ranges of the monitored machine.
type SystemConfig struct {
	BufferCapacity       int     `yaml:"buffer_capacity"`
	IngestRateHz         int     `yaml:"ingest_rate_hz"`
	RawQueueCapacity     int     `yaml:"raw_queue_capacity"`
	PersistQueueCapacity int     `yaml:"persist_queue_capacity"`
	SmoothingAlpha       float64 `yaml:"smoothing_alpha"`

	RPMMin         float64 `yaml:"rpm_min"`
	RPMMax         float64 `yaml:"rpm_max"`
	TemperatureMin float64 `yaml:"temperature_min"`
	TemperatureMax float64 `yaml:"temperature_max"`
	VibrationMin   float64 `yaml:"vibration_min"`
	VibrationMax   float64 `yaml:"vibration_max"`
}

// DefaultSystemConfig returns the factory settings for a 250 Hz rotating
// machine monitor.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		BufferCapacity:       1024,
		IngestRateHz:         250,
		RawQueueCapacity:     2048,
		PersistQueueCapacity: 2048,
		SmoothingAlpha:       0.15,
		RPMMin:               900,
		RPMMax:               3200,
		TemperatureMin:       30,
		TemperatureMax:       95,
		VibrationMin:         0,
		VibrationMax:         6.0,
	}
}

// ApplyDefaults fills zero-valued sizing fields. Ranges are left alone when
// either bound is set so that a zero minimum stays a zero minimum.
func (c *SystemConfig) ApplyDefaults() {
	def := DefaultSystemConfig()
	if c.BufferCapacity == 0 {
		c.BufferCapacity = def.BufferCapacity
	}
	if c.IngestRateHz == 0 {
		c.IngestRateHz = def.IngestRateHz
	}
	if c.RawQueueCapacity == 0 {
		c.RawQueueCapacity = def.RawQueueCapacity
	}
	if c.PersistQueueCapacity == 0 {
		c.PersistQueueCapacity = def.PersistQueueCapacity
	}
	if c.SmoothingAlpha == 0 {
		c.SmoothingAlpha = def.SmoothingAlpha
	}
	if c.RPMMin == 0 && c.RPMMax == 0 {
		c.RPMMin, c.RPMMax = def.RPMMin, def.RPMMax
	}
	if c.TemperatureMin == 0 && c.TemperatureMax == 0 {
		c.TemperatureMin, c.TemperatureMax = def.TemperatureMin, def.TemperatureMax
	}
	if c.VibrationMin == 0 && c.VibrationMax == 0 {
		c.VibrationMin, c.VibrationMax = def.VibrationMin, def.VibrationMax
	}
}

func (c SystemConfig) Validate() error {
	var errs []error
	if c.BufferCapacity <= 0 {
		errs = append(errs, errors.New("buffer_capacity must be > 0"))
	}
	if c.IngestRateHz <= 0 {
		errs = append(errs, errors.New("ingest_rate_hz must be > 0"))
	}
	if c.RawQueueCapacity <= 0 {
		errs = append(errs, errors.New("raw_queue_capacity must be > 0"))
	}
	if c.PersistQueueCapacity <= 0 {
		errs = append(errs, errors.New("persist_queue_capacity must be > 0"))
	}
	if c.RPMMin > c.RPMMax {
		errs = append(errs, fmt.Errorf("rpm_min %.2f exceeds rpm_max %.2f", c.RPMMin, c.RPMMax))
	}
	if c.TemperatureMin > c.TemperatureMax {
		errs = append(errs, fmt.Errorf("temperature_min %.2f exceeds temperature_max %.2f", c.TemperatureMin, c.TemperatureMax))
	}
	if c.VibrationMin > c.VibrationMax {
		errs = append(errs, fmt.Errorf("vibration_min %.2f exceeds vibration_max %.2f", c.VibrationMin, c.VibrationMax))
	}
	return errors.Join(errs...)
}
