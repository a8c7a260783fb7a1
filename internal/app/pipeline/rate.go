package pipeline

import (
	"math"
	"sync/atomic"
	"time"
)

// rateWindow is the minimum span over which a rate is computed.
const rateWindow = time.Second

// RateCounter estimates events per second over roughly one-second windows.
// Mark has a single writer; RateHz may be called from any goroutine.
type RateCounter struct {
	now         func() time.Time
	windowStart time.Time
	count       atomic.Int64
	rate        atomic.Uint64
}

func NewRateCounter() *RateCounter {
	return newRateCounter(time.Now)
}

func newRateCounter(now func() time.Time) *RateCounter {
	return &RateCounter{now: now, windowStart: now()}
}

// Mark records one event and closes the window once at least a second has
// elapsed since it opened.
func (r *RateCounter) Mark() {
	r.count.Add(1)

	now := r.now()
	elapsed := now.Sub(r.windowStart)
	if elapsed < rateWindow {
		return
	}
	n := r.count.Swap(0)
	r.rate.Store(math.Float64bits(float64(n) / elapsed.Seconds()))
	r.windowStart = now
}

// RateHz returns the rate of the last closed window, or 0 before the first
// window has closed.
func (r *RateCounter) RateHz() float64 {
	return math.Float64frombits(r.rate.Load())
}
