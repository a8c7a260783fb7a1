package domain

import "time"

// Sample is one raw reading as produced by a sample source.
type Sample struct {
	Timestamp    time.Time `json:"ts"`
	RPM          float64   `json:"rpm"`
	TemperatureC float64   `json:"temperature_c"`
	VibrationMmS float64   `json:"vibration_mm_s"`
}

// Frame carries the raw values of one sanitized sample together with the
// exponentially smoothed values computed when it was processed.
type Frame struct {
	Timestamp    time.Time `json:"ts"`
	RPM          float64   `json:"rpm"`
	TemperatureC float64   `json:"temperature_c"`
	VibrationMmS float64   `json:"vibration_mm_s"`

	RPMSmoothed         float64 `json:"rpm_smoothed"`
	TemperatureSmoothed float64 `json:"temperature_smoothed"`
	VibrationSmoothed   float64 `json:"vibration_smoothed"`
}
