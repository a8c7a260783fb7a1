package ports

import (
	"context"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
)

// SampleSource produces one sample per call. Pacing belongs to the caller;
// implementations block until a reading is available or ctx is done.
type SampleSource interface {
	ReadSample(ctx context.Context) (domain.Sample, error)
	Close() error
}

// StatusReporter is implemented by sources that expose a human readable
// connection status (e.g. "OPC-UA: Connected").
type StatusReporter interface {
	Status() string
	OnStatusChange(fn func(status string))
}
