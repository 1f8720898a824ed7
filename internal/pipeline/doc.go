// Package pipeline composes behaviors into a call chain.
//
// A Pipeline holds an ordered list of behaviors. For every invocation it keeps
// the behaviors that apply, links them right to left around a terminal target
// and runs the head of the chain:
//
//	p := pipeline.New(logging, recording, defaults)
//	result, err := p.Invoke(ctx, inv, target)
//
// # Chain Contract
//
// Each link receives the invocation and a next accessor. next() returns the
// following link without running it:
//
//	func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
//	    inv.Context["seen"] = true
//	    return next()(ctx, inv, next) // or pipeline.Continue(ctx, inv, next)
//	}
//
// A behavior that returns without calling next short-circuits the chain, and
// its result becomes the result of Invoke. Calling next more than once runs the
// rest of the chain again. Errors from any link are returned unchanged.
//
// # Configuration
//
// NewFromConfig builds a pipeline from config.PipelineConfig using the
// built-in behaviors of package behavior. Entries keep their configured order
// and may restrict themselves with method globs and an expression:
//
//	pipeline:
//	  behaviors:
//	    - { name: log, type: log }
//	    - { name: policy, type: webhook, url: "${POLICY_URL}", when: 'method == "Divide"' }
package pipeline
