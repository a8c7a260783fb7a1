package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/queue"
	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

type itemKind uint8

const (
	itemTelemetry itemKind = iota
	itemAlert
)

type persistItem struct {
	kind  itemKind
	frame domain.Frame
	alert domain.AlertEvent
}

// runPersist drains the persist queue into the sink. The first sink failure
// marks persistence unhealthy for the rest of the run; later items are
// discarded so the queue keeps moving.
func (p *Pipeline) runPersist(ctx context.Context, q *queue.Bounded[persistItem], st *runStats) error {
	for {
		item, ok := q.Dequeue(ctx)
		if !ok {
			return nil
		}
		if !st.healthy.Load() {
			continue
		}

		start := time.Now()
		if err := p.save(ctx, item); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			st.healthy.Store(false)
			p.obs.SetGauge(ports.GaugePersistenceHealthy, 0)
			p.obs.IncCounter(ports.MetricPersistFailures, 1)
			p.fault(st, StagePersist, fmt.Errorf("sink %s: %w", p.sink.Name(), err))
			continue
		}
		p.obs.ObserveLatency(ports.LatencySinkWrite, time.Since(start).Seconds())
		st.persist.Mark()
	}
}

// save treats a sink panic like any other sink failure.
func (p *Pipeline) save(ctx context.Context, item persistItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch item.kind {
	case itemAlert:
		return p.sink.SaveAlert(ctx, item.alert)
	default:
		return p.sink.SaveTelemetry(ctx, item.frame)
	}
}
