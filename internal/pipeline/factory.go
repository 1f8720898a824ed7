package pipeline

import (
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/callpipe/internal/behavior"
	"github.com/tjfontaine/callpipe/internal/config"
	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
	"github.com/tjfontaine/callpipe/internal/telemetry"
)

// Dependencies are the shared services built-in behaviors are wired to.
type Dependencies struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *telemetry.Metrics
	Store   ports.InvocationStore
}

// NewFromConfig builds a pipeline with one behavior per config entry, in config order.
func NewFromConfig(cfg config.PipelineConfig, deps Dependencies) (*Pipeline, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	behaviors := make([]ports.Behavior, 0, len(cfg.Behaviors))
	for _, bc := range cfg.Behaviors {
		b, err := newBehaviorFromConfig(bc, deps)
		if err != nil {
			return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("behavior %s: %v", bc.Name, err)}
		}

		pred, err := newPredicate(bc.Methods, bc.When)
		if err != nil {
			return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("behavior %s: %v", bc.Name, err)}
		}

		behaviors = append(behaviors, Named(bc.Name, Create(b.Execute, pred)))
		deps.Logger.Debug("pipeline behavior configured",
			slog.String("name", bc.Name),
			slog.String("type", bc.Type),
		)
	}

	return NewChecked(behaviors...)
}

func newBehaviorFromConfig(cfg config.BehaviorConfig, deps Dependencies) (ports.Behavior, error) {
	switch cfg.Type {
	case config.BehaviorLog:
		level, err := parseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		return behavior.NewLogging(deps.Logger, level), nil

	case config.BehaviorTrace:
		tracer := deps.Tracer
		if tracer == nil {
			tracer = telemetry.Tracer()
		}
		return behavior.NewTracing(tracer), nil

	case config.BehaviorMetrics:
		if deps.Metrics == nil {
			return nil, fmt.Errorf("metrics behavior needs a metrics registry")
		}
		return behavior.NewMetrics(deps.Metrics), nil

	case config.BehaviorRecord:
		if deps.Store == nil {
			return nil, fmt.Errorf("record behavior needs storage (storage.type is none)")
		}
		return behavior.NewRecording(deps.Store, deps.Logger), nil

	case config.BehaviorDefaultValue:
		return behavior.NewDefaultValue(), nil

	case config.BehaviorRetry:
		return behavior.NewRetry(cfg.Attempts), nil

	case config.BehaviorThrottle:
		return behavior.NewThrottle(cfg.Name, cfg.RatePerSecond, cfg.Burst), nil

	case config.BehaviorWebhook:
		var timeout time.Duration
		if cfg.Timeout != "" {
			var err error
			timeout, err = time.ParseDuration(cfg.Timeout)
			if err != nil {
				return nil, fmt.Errorf("invalid timeout %q: %w", cfg.Timeout, err)
			}
		}
		switch cfg.OnError {
		case "", "allow", "deny":
		default:
			return nil, fmt.Errorf("invalid on_error %q (must be 'allow' or 'deny')", cfg.OnError)
		}
		return behavior.NewWebhook(behavior.WebhookConfig{
			Name:    cfg.Name,
			URL:     cfg.URL,
			Timeout: timeout,
			OnError: cfg.OnError,
			Retries: cfg.Retries,
			Headers: cfg.Headers,

			BlockPrivateNetworks: cfg.BlockPrivateNetworks,
		}), nil

	default:
		return nil, fmt.Errorf("unknown type %q", cfg.Type)
	}
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid level %q: %w", s, err)
	}
	return level, nil
}

// newPredicate combines method globs and a when expression. Both must match.
// A nil predicate applies to every invocation.
func newPredicate(methods []string, when string) (ports.AppliesToFunc, error) {
	for _, pattern := range methods {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid method pattern %q: %w", pattern, err)
		}
	}

	var program *vm.Program
	if when != "" {
		var err error
		program, err = expr.Compile(when, expr.Env(predicateEnv(nil)), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("invalid when expression: %w", err)
		}
	}

	if len(methods) == 0 && program == nil {
		return nil, nil
	}

	return func(inv *domain.Invocation) bool {
		if len(methods) > 0 && !matchesAny(methods, inv.Method.Name) {
			return false
		}
		if program == nil {
			return true
		}
		out, err := expr.Run(program, predicateEnv(inv))
		if err != nil {
			return false
		}
		ok, _ := out.(bool)
		return ok
	}, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// predicateEnv exposes an invocation to when expressions. A nil invocation
// yields the empty environment used for type checking.
func predicateEnv(inv *domain.Invocation) map[string]any {
	env := map[string]any{
		"method":      "",
		"signature":   "",
		"args":        []any{},
		"arg_count":   0,
		"target":      nil,
		"target_type": "",
		"void":        false,
		"context":     map[string]any{},
	}
	if inv == nil {
		return env
	}

	env["method"] = inv.Method.Name
	env["signature"] = inv.Method.String()
	env["args"] = inv.Arguments
	env["arg_count"] = len(inv.Arguments)
	env["target"] = inv.Target
	if inv.Target != nil {
		env["target_type"] = fmt.Sprintf("%T", inv.Target)
	}
	env["void"] = inv.Method.IsVoid()
	if inv.Context != nil {
		env["context"] = map[string]any(inv.Context)
	}
	return env
}
