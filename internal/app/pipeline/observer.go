package pipeline

import (
	"fmt"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
)

// Stage names a pipeline worker.
type Stage string

const (
	StageIngest  Stage = "ingest"
	StageProcess Stage = "process"
	StagePersist Stage = "persist"
)

// StageError is the value delivered to OnFault.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Observer receives pipeline events synchronously on the goroutine of the
// stage that produced them. Slow observers slow that stage down.
type Observer interface {
	OnFrame(frame domain.Frame)
	OnAlert(alert domain.AlertEvent)
	OnFault(err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Frame func(domain.Frame)
	Alert func(domain.AlertEvent)
	Fault func(error)
}

func (o ObserverFuncs) OnFrame(f domain.Frame) {
	if o.Frame != nil {
		o.Frame(f)
	}
}

func (o ObserverFuncs) OnAlert(a domain.AlertEvent) {
	if o.Alert != nil {
		o.Alert(a)
	}
}

func (o ObserverFuncs) OnFault(err error) {
	if o.Fault != nil {
		o.Fault(err)
	}
}

type subscriber struct {
	id  uint64
	obs Observer
}

// Subscribe registers obs and returns a function that removes it again.
// Subscribing is safe at any time; stages see the new list on their next event.
func (p *Pipeline) Subscribe(obs Observer) (unsubscribe func()) {
	if obs == nil {
		return func() {}
	}

	p.subMu.Lock()
	p.nextSubID++
	id := p.nextSubID
	cur := p.loadSubscribers()
	next := make([]subscriber, 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, subscriber{id: id, obs: obs})
	p.subscribers.Store(&next)
	p.subMu.Unlock()

	return func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		cur := p.loadSubscribers()
		next := make([]subscriber, 0, len(cur))
		for _, s := range cur {
			if s.id != id {
				next = append(next, s)
			}
		}
		p.subscribers.Store(&next)
	}
}

func (p *Pipeline) loadSubscribers() []subscriber {
	if s := p.subscribers.Load(); s != nil {
		return *s
	}
	return nil
}

// subscribersFor returns nil once st belongs to a stopped or replaced run.
func (p *Pipeline) subscribersFor(st *runStats) []subscriber {
	if st == nil || st.run != p.gen.Load() {
		return nil
	}
	return p.loadSubscribers()
}

func (p *Pipeline) publishFrame(st *runStats, f domain.Frame) {
	for _, s := range p.subscribersFor(st) {
		s.obs.OnFrame(f)
	}
}

func (p *Pipeline) publishAlert(st *runStats, a domain.AlertEvent) {
	for _, s := range p.subscribersFor(st) {
		s.obs.OnAlert(a)
	}
}

// publishFault never panics: it runs inside stage recovery.
func (p *Pipeline) publishFault(st *runStats, err error) {
	for _, s := range p.subscribersFor(st) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.obs.LogError("fault_observer_panic", fmt.Errorf("%v", r))
				}
			}()
			s.obs.OnFault(err)
		}()
	}
}
