package pipeline

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/oscar1457/Industrial-Sentinel/internal/adapters/queue"
	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
	"github.com/oscar1457/Industrial-Sentinel/internal/processing"
)

// latencyAlpha smooths the end-to-end latency estimate.
const latencyAlpha = 0.2

func (p *Pipeline) runProcess(ctx context.Context, raw *queue.Bounded[domain.Sample], persist *queue.Bounded[persistItem], st *runStats) error {
	proc := processing.NewProcessor(p.cfg.SmoothingAlpha)
	var (
		latency     float64
		latencySeen bool
	)

	for {
		s, ok := raw.Dequeue(ctx)
		if !ok {
			return nil
		}

		clean := p.sanitizer.Sanitize(s)

		ms := float64(time.Since(clean.Timestamp)) / float64(time.Millisecond)
		if !latencySeen {
			latency, latencySeen = ms, true
		} else {
			latency = latencyAlpha*ms + (1-latencyAlpha)*latency
		}
		st.latencyMs.Store(math.Float64bits(latency))

		frame := proc.Process(clean)
		st.process.Mark()
		p.obs.IncCounter(ports.MetricFramesProcessed, 1)
		p.publishFrame(st, frame)

		raised := p.evaluator.Evaluate(frame)
		for _, a := range raised {
			p.obs.IncCounter(ports.MetricAlertsRaised, 1)
			p.publishAlert(st, a)
		}

		if persist == nil {
			continue
		}
		for _, a := range raised {
			p.enqueuePersist(persist, persistItem{kind: itemAlert, alert: a}, st)
		}
		p.enqueuePersist(persist, persistItem{kind: itemTelemetry, frame: frame}, st)
	}
}

// enqueuePersist drops immediately once persistence is unhealthy, otherwise
// waits at most the enqueue timeout.
func (p *Pipeline) enqueuePersist(q *queue.Bounded[persistItem], item persistItem, st *runStats) {
	if !st.healthy.Load() {
		st.persistDrops.Add(1)
		p.obs.IncCounter(ports.MetricPersistDropped, 1)
		return
	}
	if err := q.Enqueue(item, p.policy.EnqueueTimeout); errors.Is(err, queue.ErrQueueFull) {
		st.persistDrops.Add(1)
		p.obs.IncCounter(ports.MetricPersistDropped, 1)
	}
}
