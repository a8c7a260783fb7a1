package ports

import (
	"context"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
)

// PersistenceSink stores processed frames and alert facts. Both writes may
// fail; the pipeline degrades instead of retrying.
type PersistenceSink interface {
	SaveTelemetry(ctx context.Context, frame domain.Frame) error
	SaveAlert(ctx context.Context, alert domain.AlertEvent) error
	Name() string
	Close() error
}
