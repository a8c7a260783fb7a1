package sink

import (
	"context"

	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

// Nop accepts and discards everything. It stands in when persistence is
// disabled.
type Nop struct{}

func (Nop) Name() string                                       { return "none" }
func (Nop) SaveTelemetry(context.Context, domain.Frame) error  { return nil }
func (Nop) SaveAlert(context.Context, domain.AlertEvent) error { return nil }
func (Nop) Close() error                                       { return nil }

var _ ports.PersistenceSink = Nop{}
