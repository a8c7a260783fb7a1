package processing

import (
	"math"
	"testing"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
)

func TestProcessorSeedsWithFirstSample(t *testing.T) {
	p := NewProcessor(0.15)
	f := p.Process(domain.Sample{RPM: 1800, TemperatureC: 70, VibrationMmS: 3})
	if f.RPMSmoothed != 1800 || f.TemperatureSmoothed != 70 || f.VibrationSmoothed != 3 {
		t.Fatalf("expected first frame smoothed == raw, got %+v", f)
	}
}

func TestProcessorBlendsSubsequentSamples(t *testing.T) {
	p := NewProcessor(0.5)
	p.Process(domain.Sample{RPM: 1000})
	f := p.Process(domain.Sample{RPM: 2000})
	if f.RPM != 2000 {
		t.Fatalf("expected raw rpm carried through, got %f", f.RPM)
	}
	if f.RPMSmoothed != 1500 {
		t.Fatalf("expected smoothed rpm 1500, got %f", f.RPMSmoothed)
	}
}

func TestProcessorConvergesMonotonically(t *testing.T) {
	p := NewProcessor(0.15)
	p.Process(domain.Sample{TemperatureC: 30})

	prevGap := math.Inf(1)
	var f domain.Frame
	for i := 0; i < 200; i++ {
		f = p.Process(domain.Sample{TemperatureC: 80})
		gap := 80 - f.TemperatureSmoothed
		if gap < -1e-9 || gap > prevGap+1e-12 {
			t.Fatalf("step %d: gap %f not monotonically shrinking (prev %f)", i, gap, prevGap)
		}
		prevGap = gap
	}
	if math.Abs(f.TemperatureSmoothed-80) > 1e-6 {
		t.Fatalf("expected convergence to 80, got %f", f.TemperatureSmoothed)
	}
}

func TestProcessorAlphaIsClamped(t *testing.T) {
	cases := map[float64]float64{
		-1:    MinAlpha,
		0:     MinAlpha,
		0.005: MinAlpha,
		0.3:   0.3,
		1:     1,
		4:     MaxAlpha,
	}
	for in, want := range cases {
		if got := NewProcessor(in).Alpha(); got != want {
			t.Fatalf("alpha %v: expected %v, got %v", in, want, got)
		}
	}
	if got := ClampAlpha(math.NaN()); got != MinAlpha {
		t.Fatalf("expected NaN alpha to clamp to %v, got %v", MinAlpha, got)
	}
}

func TestProcessorAlphaOneTracksRaw(t *testing.T) {
	p := NewProcessor(1)
	p.Process(domain.Sample{VibrationMmS: 1})
	f := p.Process(domain.Sample{VibrationMmS: 4.2})
	if f.VibrationSmoothed != 4.2 {
		t.Fatalf("expected smoothed to equal raw with alpha=1, got %f", f.VibrationSmoothed)
	}
}

func TestProcessorReset(t *testing.T) {
	p := NewProcessor(0.1)
	p.Process(domain.Sample{RPM: 1000})
	p.Reset()
	f := p.Process(domain.Sample{RPM: 3000})
	if f.RPMSmoothed != 3000 {
		t.Fatalf("expected reset processor to reseed, got %f", f.RPMSmoothed)
	}
}
