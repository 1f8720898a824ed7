package behavior

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
)

// Tracing wraps the rest of the chain in a span.
type Tracing struct {
	tracer trace.Tracer
}

func NewTracing(tracer trace.Tracer) *Tracing {
	return &Tracing{tracer: tracer}
}

func (b *Tracing) Name() string { return "trace" }

func (b *Tracing) AppliesTo(*domain.Invocation) bool { return true }

func (b *Tracing) Execute(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
	ctx, span := b.tracer.Start(ctx, "callpipe.invoke "+inv.Method.Name,
		trace.WithAttributes(
			attribute.String("callpipe.method", inv.Method.Name),
			attribute.String("callpipe.signature", inv.Method.String()),
			attribute.String("callpipe.target_type", targetType(inv)),
			attribute.Int("callpipe.arg_count", len(inv.Arguments)),
		),
	)
	defer span.End()

	result, err := next()(ctx, inv, next)

	span.SetAttributes(attribute.String("callpipe.outcome", Outcome(result, err)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// Ensure Tracing implements the interface.
var _ ports.Behavior = (*Tracing)(nil)
