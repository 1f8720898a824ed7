package behavior

import (
	"context"
	"time"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
	"github.com/tjfontaine/callpipe/internal/telemetry"
)

// Metrics counts invocations and observes their duration.
type Metrics struct {
	metrics *telemetry.Metrics
}

func NewMetrics(m *telemetry.Metrics) *Metrics {
	return &Metrics{metrics: m}
}

func (b *Metrics) Name() string { return "metrics" }

func (b *Metrics) AppliesTo(*domain.Invocation) bool { return true }

func (b *Metrics) Execute(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
	start := time.Now()
	result, err := next()(ctx, inv, next)

	b.metrics.InvocationDuration.WithLabelValues(inv.Method.Name).Observe(time.Since(start).Seconds())
	b.metrics.InvocationsTotal.WithLabelValues(inv.Method.Name, Outcome(result, err)).Inc()
	return result, err
}

// Ensure Metrics implements the interface.
var _ ports.Behavior = (*Metrics)(nil)
