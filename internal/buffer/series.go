package buffer

import (
	"sync"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
)

// SeriesSnapshot holds parallel slices: index i of every slice belongs to the
// same frame. Ticks are Unix nanoseconds.
type SeriesSnapshot struct {
	RPM         []float64 `json:"rpm"`
	Temperature []float64 `json:"temperature"`
	Vibration   []float64 `json:"vibration"`
	Ticks       []int64   `json:"ticks"`
}

func (s SeriesSnapshot) Len() int { return len(s.RPM) }

// Series keeps the smoothed history of the last N frames in four rings that
// are only ever touched together, under one lock.
type Series struct {
	mu          sync.Mutex
	rpm         *Ring[float64]
	temperature *Ring[float64]
	vibration   *Ring[float64]
	ticks       *Ring[int64]
}

func NewSeries(capacity int) (*Series, error) {
	rpm, err := NewRing[float64](capacity)
	if err != nil {
		return nil, err
	}
	// capacity is valid from here on.
	temperature, _ := NewRing[float64](capacity)
	vibration, _ := NewRing[float64](capacity)
	ticks, _ := NewRing[int64](capacity)
	return &Series{
		rpm:         rpm,
		temperature: temperature,
		vibration:   vibration,
		ticks:       ticks,
	}, nil
}

func (s *Series) Capacity() int { return s.rpm.Capacity() }

func (s *Series) Add(f domain.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rpm.WriteUnsafe(f.RPMSmoothed)
	s.temperature.WriteUnsafe(f.TemperatureSmoothed)
	s.vibration.WriteUnsafe(f.VibrationSmoothed)
	s.ticks.WriteUnsafe(f.Timestamp.UnixNano())
}

func (s *Series) Snapshot() SeriesSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SeriesSnapshot{
		RPM:         s.rpm.SnapshotUnsafe(),
		Temperature: s.temperature.SnapshotUnsafe(),
		Vibration:   s.vibration.SnapshotUnsafe(),
		Ticks:       s.ticks.SnapshotUnsafe(),
	}
}
