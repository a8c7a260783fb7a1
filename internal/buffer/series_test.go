package buffer

import (
	"sync"
	"testing"
	"time"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
)

func TestSeriesKeepsParallelIndexes(t *testing.T) {
	s, err := NewSeries(3)
	if err != nil {
		t.Fatalf("new series: %v", err)
	}

	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 5; i++ {
		s.Add(domain.Frame{
			Timestamp:           base.Add(time.Duration(i) * time.Second),
			RPMSmoothed:         float64(1000 + i),
			TemperatureSmoothed: float64(50 + i),
			VibrationSmoothed:   float64(i),
		})
	}

	snap := s.Snapshot()
	if snap.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", snap.Len())
	}
	for i := 0; i < 3; i++ {
		frameIdx := i + 2
		if snap.RPM[i] != float64(1000+frameIdx) ||
			snap.Temperature[i] != float64(50+frameIdx) ||
			snap.Vibration[i] != float64(frameIdx) ||
			snap.Ticks[i] != base.Add(time.Duration(frameIdx)*time.Second).UnixNano() {
			t.Fatalf("index %d mixes frames: %+v", i, snap)
		}
	}
}

func TestSeriesConcurrentAddAndSnapshot(t *testing.T) {
	s, _ := NewSeries(32)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			v := float64(i)
			s.Add(domain.Frame{Timestamp: time.Unix(0, int64(i)), RPMSmoothed: v, TemperatureSmoothed: v, VibrationSmoothed: v})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			snap := s.Snapshot()
			if len(snap.RPM) != len(snap.Ticks) || len(snap.Temperature) != len(snap.Vibration) || len(snap.RPM) != len(snap.Vibration) {
				t.Errorf("snapshot lengths diverged: %d %d %d %d", len(snap.RPM), len(snap.Temperature), len(snap.Vibration), len(snap.Ticks))
				return
			}
			for j := range snap.RPM {
				if snap.RPM[j] != snap.Temperature[j] || snap.RPM[j] != snap.Vibration[j] || int64(snap.RPM[j]) != snap.Ticks[j] {
					t.Errorf("torn snapshot at %d", j)
					return
				}
			}
		}
	}()
	wg.Wait()
}

func TestSeriesInvalidCapacity(t *testing.T) {
	if _, err := NewSeries(0); err == nil {
		t.Fatalf("expected error for zero capacity")
	}
}
