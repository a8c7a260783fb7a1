package sentinel

import (
	"context"
	"errors"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("sentinel: channel sink closed")

// FrameHandler receives every persisted frame.
type FrameHandler func(Frame) error

// AlertHandler receives every persisted alert.
type AlertHandler func(AlertEvent) error

// Record is one item delivered by a channel sink. Exactly one of Frame and
// Alert is set.
type Record struct {
	Frame *Frame
	Alert *AlertEvent
}

// NewCallbackSink adapts two functions into a full Sink so callers can plug
// arbitrary handlers without defining structs. A nil handler ignores that
// kind of item.
func NewCallbackSink(name string, onFrame FrameHandler, onAlert AlertHandler) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, onFrame: onFrame, onAlert: onAlert}
}

// NewChannelSink exposes persisted items via a channel; it returns the sink,
// the read-only channel, and a close function that the caller should invoke
// during shutdown. A full channel blocks the persist stage until the write
// context is done.
func NewChannelSink(name string, buffer int) (Sink, <-chan Record, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Record, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name    string
	onFrame FrameHandler
	onAlert AlertHandler
}

func (s *callbackSink) SaveTelemetry(_ context.Context, f Frame) error {
	if s.onFrame == nil {
		return nil
	}
	return s.onFrame(f)
}

func (s *callbackSink) SaveAlert(_ context.Context, a AlertEvent) error {
	if s.onAlert == nil {
		return nil
	}
	return s.onAlert(a)
}

func (s *callbackSink) Name() string { return s.name }

func (s *callbackSink) Close() error { return nil }

type channelSink struct {
	name string
	ch   chan Record

	// mu guards sends against close(ch).
	mu     sync.RWMutex
	closed chan struct{}
	once   sync.Once
}

func (s *channelSink) SaveTelemetry(ctx context.Context, f Frame) error {
	return s.send(ctx, Record{Frame: &f})
}

func (s *channelSink) SaveAlert(ctx context.Context, a AlertEvent) error {
	return s.send(ctx, Record{Alert: &a})
}

func (s *channelSink) send(ctx context.Context, rec Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- rec:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

// Close is a no-op so that the runtime shutting down does not close a
// channel the caller still reads; use the close function instead.
func (s *channelSink) Close() error { return nil }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}
