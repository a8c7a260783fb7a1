package sentinel

import (
	"context"
	"errors"
	"sync"
)

// ErrSourceClosed is returned by an ExternalSource after Close.
var ErrSourceClosed = errors.New("sentinel: external source closed")

// ExternalSource is a Source fed by the caller. It lets a service that
// already receives readings (MQTT, HTTP, a fieldbus driver) push them into
// the pipeline. The ingest stage still paces reads at the configured rate, so
// bursts wait in the buffer.
type ExternalSource struct {
	ch        chan Sample
	closed    chan struct{}
	closeOnce sync.Once
}

func NewExternalSource(buffer int) *ExternalSource {
	if buffer < 0 {
		buffer = 0
	}
	return &ExternalSource{
		ch:     make(chan Sample, buffer),
		closed: make(chan struct{}),
	}
}

// Publish blocks until the sample is buffered, ctx is done or the source is
// closed.
func (s *ExternalSource) Publish(ctx context.Context, sample Sample) error {
	select {
	case <-s.closed:
		return ErrSourceClosed
	default:
	}

	select {
	case <-s.closed:
		return ErrSourceClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- sample:
		return nil
	}
}

// TryPublish buffers sample without waiting and reports whether it fit.
func (s *ExternalSource) TryPublish(sample Sample) bool {
	select {
	case <-s.closed:
		return false
	default:
	}

	select {
	case s.ch <- sample:
		return true
	default:
		return false
	}
}

// Len is the number of buffered samples.
func (s *ExternalSource) Len() int { return len(s.ch) }

func (s *ExternalSource) ReadSample(ctx context.Context) (Sample, error) {
	select {
	case <-s.closed:
		return Sample{}, ErrSourceClosed
	case <-ctx.Done():
		return Sample{}, ctx.Err()
	case sample := <-s.ch:
		return sample, nil
	}
}

func (s *ExternalSource) Status() string { return "external" }

func (s *ExternalSource) OnStatusChange(func(string)) {}

func (s *ExternalSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
