package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/queue"
	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

// runIngest reads one sample per tick on an absolute schedule so that a slow
// read shortens the following sleep instead of drifting the cadence.
func (p *Pipeline) runIngest(ctx context.Context, raw *queue.Bounded[domain.Sample], st *runStats) error {
	interval := time.Second / time.Duration(p.cfg.IngestRateHz)
	next := time.Now()

	for {
		if ctx.Err() != nil {
			return nil
		}

		s, err := p.read(ctx)
		switch {
		case err == nil:
			st.ingest.Mark()
			if !p.enqueueSample(raw, s, st) {
				return nil
			}
		case ctx.Err() != nil:
			return nil
		case p.policy.ReadTimeout > 0 && errors.Is(err, context.DeadlineExceeded):
			st.droppedSamples.Add(1)
			p.obs.IncCounter(ports.MetricSamplesDropped, 1)
			p.obs.LogError("source_read_timeout", err, ports.Field{Key: "timeout", Value: p.policy.ReadTimeout.String()})
		default:
			return fmt.Errorf("read sample: %w", err)
		}

		next = next.Add(interval)
		if wait := time.Until(next); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

func (p *Pipeline) read(ctx context.Context) (domain.Sample, error) {
	if p.policy.ReadTimeout <= 0 {
		return p.source.ReadSample(ctx)
	}
	rctx, cancel := context.WithTimeout(ctx, p.policy.ReadTimeout)
	defer cancel()
	return p.source.ReadSample(rctx)
}

// enqueueSample applies the bounded-wait-then-drop policy. It returns false
// once the queue is closed and ingest should end.
func (p *Pipeline) enqueueSample(raw *queue.Bounded[domain.Sample], s domain.Sample, st *runStats) bool {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}

	err := raw.Enqueue(s, p.policy.EnqueueTimeout)
	switch {
	case err == nil:
		return true
	case errors.Is(err, queue.ErrQueueClosed):
		return false
	default:
		st.droppedSamples.Add(1)
		p.obs.IncCounter(ports.MetricSamplesDropped, 1)
		return true
	}
}
