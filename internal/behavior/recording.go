package behavior

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
)

// Recording saves every invocation that passes through it, successful or not.
// Storage failures are logged and never change the outcome of the call.
type Recording struct {
	store  ports.InvocationStore
	logger *slog.Logger
	now    func() time.Time
}

func NewRecording(store ports.InvocationStore, logger *slog.Logger) *Recording {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recording{store: store, logger: logger, now: time.Now}
}

func (b *Recording) Name() string { return "record" }

func (b *Recording) AppliesTo(*domain.Invocation) bool { return true }

func (b *Recording) Execute(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
	id := uuid.New().String()
	inv.Context[InvocationIDKey] = id

	rec := &domain.InvocationRecord{
		ID:         id,
		Method:     inv.Method.Name,
		Signature:  inv.Method.String(),
		TargetType: targetType(inv),
		Arguments:  encodeJSON(inv.Arguments),
		StartedAt:  b.now(),
	}

	result, err := next()(ctx, inv, next)

	rec.Duration = b.now().Sub(rec.StartedAt)
	rec.Outcome = Outcome(result, err)
	if err != nil {
		rec.Error = err.Error()
	} else if result != nil {
		if result.Kind() != domain.ResultVoid {
			rec.ReturnValue = encodeJSON(result.ReturnValue())
		}
		if len(result.Outputs()) > 0 {
			rec.Outputs = encodeJSON(result.Outputs())
		}
	}

	if saveErr := b.store.SaveInvocation(ctx, rec); saveErr != nil {
		b.logger.Error("failed to record invocation",
			slog.String("invocation_id", id),
			slog.String("method", inv.Method.Name),
			slog.String("error", saveErr.Error()),
		)
	}

	return result, err
}

// Ensure Recording implements the interface.
var _ ports.Behavior = (*Recording)(nil)
