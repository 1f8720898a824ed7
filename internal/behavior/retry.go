package behavior

import (
	"context"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
)

// Retry runs the rest of the chain again while it fails, up to attempts times.
// Denials and cancelled contexts are not retried.
type Retry struct {
	attempts int
}

func NewRetry(attempts int) *Retry {
	if attempts < 1 {
		attempts = 1
	}
	return &Retry{attempts: attempts}
}

func (b *Retry) Name() string { return "retry" }

func (b *Retry) AppliesTo(*domain.Invocation) bool { return true }

func (b *Retry) Execute(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
	var lastErr error
	for attempt := 0; attempt < b.attempts; attempt++ {
		result, err := next()(ctx, inv, next)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Don't retry on denial or context cancellation
		if IsDenied(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// Ensure Retry implements the interface.
var _ ports.Behavior = (*Retry)(nil)
