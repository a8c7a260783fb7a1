package ports

import "time"

// Policy controls backpressure and shutdown behaviour of the pipeline.
type Policy struct {
	// EnqueueTimeout bounds how long a stage waits on a full queue before the
	// item is dropped.
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout"`
	// JoinTimeout bounds how long Stop waits for each stage to exit.
	JoinTimeout time.Duration `yaml:"join_timeout"`
	// ReadTimeout bounds a single source read. Zero leaves reads unbounded.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	PersistenceEnabled bool `yaml:"-"`
}

func DefaultPolicy() Policy {
	return Policy{
		EnqueueTimeout:     5 * time.Millisecond,
		JoinTimeout:        2 * time.Second,
		PersistenceEnabled: true,
	}
}

func (p *Policy) ApplyDefaults() {
	if p.EnqueueTimeout <= 0 {
		p.EnqueueTimeout = 5 * time.Millisecond
	}
	if p.JoinTimeout <= 0 {
		p.JoinTimeout = 2 * time.Second
	}
	if p.ReadTimeout < 0 {
		p.ReadTimeout = 0
	}
}
