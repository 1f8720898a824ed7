// Package ports defines the core interfaces shared by the pipeline, the built-in
// behaviors and the storage backends.
// This file contains the behavior chain contracts.
package ports

import (
	"context"

	"github.com/tjfontaine/callpipe/internal/core/domain"
)

// GetNextFunc returns the next link of the chain without running it. A behavior
// runs the rest of the chain with next()(ctx, inv, next); not calling it
// short-circuits the chain.
type GetNextFunc func() ExecuteFunc

// ExecuteFunc is one link of the chain: a behavior action or the terminal target.
type ExecuteFunc func(ctx context.Context, inv *domain.Invocation, next GetNextFunc) (*domain.Result, error)

// AppliesToFunc decides whether a behavior takes part in an invocation.
type AppliesToFunc func(inv *domain.Invocation) bool

// Behavior is a conditionally applicable link in the pipeline.
type Behavior interface {
	// AppliesTo reports whether Execute should run for inv. Behaviors that do
	// not apply are left out of the chain entirely.
	AppliesTo(inv *domain.Invocation) bool
	// Execute runs the behavior. It may call next zero, one or many times.
	Execute(ctx context.Context, inv *domain.Invocation, next GetNextFunc) (*domain.Result, error)
}

// AppliesTo makes a bare ExecuteFunc a behavior that applies to every invocation.
func (f ExecuteFunc) AppliesTo(*domain.Invocation) bool { return true }

// Execute calls f.
func (f ExecuteFunc) Execute(ctx context.Context, inv *domain.Invocation, next GetNextFunc) (*domain.Result, error) {
	return f(ctx, inv, next)
}

// PipelineInvoker runs an invocation through a behavior chain ending in target.
type PipelineInvoker interface {
	Invoke(ctx context.Context, inv *domain.Invocation, target ExecuteFunc) (*domain.Result, error)
}
