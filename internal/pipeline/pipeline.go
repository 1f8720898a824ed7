package pipeline

import (
	"context"
	"fmt"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
)

// Pipeline runs invocations through an ordered list of behaviors.
// It is immutable once built and safe for concurrent use.
type Pipeline struct {
	behaviors []ports.Behavior
}

// New creates a pipeline. Behaviors run in the order given, filtered only by
// whether they apply to the invocation. It panics if a behavior is nil.
func New(behaviors ...ports.Behavior) *Pipeline {
	p, err := NewChecked(behaviors...)
	if err != nil {
		panic(err)
	}
	return p
}

// NewChecked is like New but reports nil behaviors as an error.
func NewChecked(behaviors ...ports.Behavior) (*Pipeline, error) {
	p := &Pipeline{behaviors: make([]ports.Behavior, len(behaviors))}
	for i, b := range behaviors {
		if b == nil {
			return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("behavior %d is nil", i)}
		}
		p.behaviors[i] = b
	}
	return p, nil
}

// Invoke runs inv through the behaviors that apply to it and then target.
// The result is whatever the link that ended the chain returned; a link that
// returns neither a result nor an error is reported as a ConfigurationError.
func (p *Pipeline) Invoke(ctx context.Context, inv *domain.Invocation, target ports.ExecuteFunc) (*domain.Result, error) {
	if target == nil {
		target = missingTarget
	}

	applicable := make([]ports.Behavior, 0, len(p.behaviors))
	for _, b := range p.behaviors {
		if b.AppliesTo(inv) {
			applicable = append(applicable, b)
		}
	}

	chain := target
	for i := len(applicable) - 1; i >= 0; i-- {
		chain = link(applicable[i], chain)
	}

	result, err := chain(ctx, inv, terminalNext)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("chain for %s returned neither a result nor an error", inv.Method.Name)}
	}
	return result, nil
}

// Len returns the number of configured behaviors.
func (p *Pipeline) Len() int {
	return len(p.behaviors)
}

// Behaviors returns a copy of the configured behaviors in order.
func (p *Pipeline) Behaviors() []ports.Behavior {
	out := make([]ports.Behavior, len(p.behaviors))
	copy(out, p.behaviors)
	return out
}

// link binds b to the rest of the chain. The next passed in by the caller is
// ignored; b always continues with rest.
func link(b ports.Behavior, rest ports.ExecuteFunc) ports.ExecuteFunc {
	getNext := func() ports.ExecuteFunc {
		return func(ctx context.Context, inv *domain.Invocation, _ ports.GetNextFunc) (*domain.Result, error) {
			return rest(ctx, inv, terminalNext)
		}
	}
	return func(ctx context.Context, inv *domain.Invocation, _ ports.GetNextFunc) (*domain.Result, error) {
		return b.Execute(ctx, inv, getNext)
	}
}

// terminalNext is handed to the innermost link. Calling through it means the
// target tried to continue past the end of the chain.
func terminalNext() ports.ExecuteFunc {
	return endOfChain
}

func endOfChain(_ context.Context, inv *domain.Invocation, _ ports.GetNextFunc) (*domain.Result, error) {
	return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("no link after the target of %s", inv.Method.Name)}
}

func missingTarget(_ context.Context, inv *domain.Invocation, _ ports.GetNextFunc) (*domain.Result, error) {
	return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("no target for %s", inv.Method.Name)}
}

// Ensure Pipeline implements the interface.
var _ ports.PipelineInvoker = (*Pipeline)(nil)
