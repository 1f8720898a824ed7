package behavior

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
)

// Throttle denies calls that exceed a token-bucket rate. The limiter is shared
// by every invocation the behavior applies to.
type Throttle struct {
	name    string
	limiter *rate.Limiter
}

// NewThrottle allows perSecond calls per second with bursts of up to burst calls.
func NewThrottle(name string, perSecond float64, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	if name == "" {
		name = "throttle"
	}
	return &Throttle{name: name, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (b *Throttle) Name() string { return b.name }

func (b *Throttle) AppliesTo(*domain.Invocation) bool { return true }

func (b *Throttle) Execute(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
	if !b.limiter.Allow() {
		return nil, &DeniedError{
			Behavior: b.name,
			Reason:   fmt.Sprintf("rate limit exceeded for %s", inv.Method.Name),
		}
	}
	return next()(ctx, inv, next)
}

// Ensure Throttle implements the interface.
var _ ports.Behavior = (*Throttle)(nil)
