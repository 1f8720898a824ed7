package pipeline

import (
	"context"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
)

// funcBehavior pairs an action with its applicability predicate.
type funcBehavior struct {
	execute   ports.ExecuteFunc
	appliesTo ports.AppliesToFunc
}

// Create pairs execute with appliesTo. A nil appliesTo applies to every invocation.
func Create(execute ports.ExecuteFunc, appliesTo ports.AppliesToFunc) ports.Behavior {
	if appliesTo == nil {
		appliesTo = always
	}
	return &funcBehavior{execute: execute, appliesTo: appliesTo}
}

func (b *funcBehavior) AppliesTo(inv *domain.Invocation) bool {
	return b.appliesTo(inv)
}

func (b *funcBehavior) Execute(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
	return b.execute(ctx, inv, next)
}

// Continue runs the rest of the chain.
func Continue(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
	return next()(ctx, inv, next)
}

// Named gives a behavior a name for logs and introspection.
func Named(name string, b ports.Behavior) ports.Behavior {
	return &namedBehavior{Behavior: b, name: name}
}

type namedBehavior struct {
	ports.Behavior
	name string
}

func (b *namedBehavior) Name() string { return b.name }

// NameOf returns the name of b, or "" when it has none.
func NameOf(b ports.Behavior) string {
	if n, ok := b.(interface{ Name() string }); ok {
		return n.Name()
	}
	return ""
}

func always(*domain.Invocation) bool { return true }
