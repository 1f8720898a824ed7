package behavior

import (
	"context"
	"log/slog"
	"time"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
)

// Logging logs the start and end of every invocation.
type Logging struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogging creates a logging behavior. Start and completion are logged at
// level; failures are always logged at error level.
func NewLogging(logger *slog.Logger, level slog.Level) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger, level: level}
}

func (b *Logging) Name() string { return "log" }

func (b *Logging) AppliesTo(*domain.Invocation) bool { return true }

func (b *Logging) Execute(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
	start := time.Now()

	b.logger.LogAttrs(ctx, b.level, "invocation started",
		slog.String("method", inv.Method.Name),
		slog.String("signature", inv.Method.String()),
		slog.Int("arg_count", len(inv.Arguments)),
	)

	result, err := next()(ctx, inv, next)

	duration := time.Since(start)
	if err != nil {
		b.logger.LogAttrs(ctx, slog.LevelError, "invocation failed",
			slog.String("method", inv.Method.Name),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return result, err
	}

	b.logger.LogAttrs(ctx, b.level, "invocation completed",
		slog.String("method", inv.Method.Name),
		slog.String("outcome", Outcome(result, nil)),
		slog.Duration("duration", duration),
	)
	return result, nil
}

// Ensure Logging implements the interface.
var _ ports.Behavior = (*Logging)(nil)
