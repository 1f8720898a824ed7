// Package callpipe provides the public API for embedding the behavior pipeline.
// This is the stable API for external consumers.
//
// A pipeline wraps a call on a target in an ordered chain of behaviors. Each
// behavior may inspect the invocation, call the rest of the chain through next,
// call it several times, or return its own result without calling it at all:
//
//	audit := callpipe.Create(func(ctx context.Context, inv *callpipe.Invocation, next callpipe.GetNextFunc) (*callpipe.Result, error) {
//	    log.Printf("calling %s", inv.Method)
//	    return callpipe.Continue(ctx, inv, next)
//	}, nil)
//
//	p := callpipe.NewPipeline(audit)
//	px := callpipe.NewProxy(p, svc)
//	_ = px.RegisterFunc("Upper", svc.Upper, "s")
//	result, err := px.Call(ctx, "Upper", "hi")
package callpipe

import (
	"github.com/tjfontaine/callpipe/internal/behavior"
	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
	"github.com/tjfontaine/callpipe/internal/pipeline"
	"github.com/tjfontaine/callpipe/internal/proxy"
	"github.com/tjfontaine/callpipe/internal/storage/memory"
	"github.com/tjfontaine/callpipe/internal/storage/sqlite"
	"github.com/tjfontaine/callpipe/internal/telemetry"
)

// Core model. See internal/core/domain for full documentation.
type (
	Invocation         = domain.Invocation
	Result             = domain.Result
	ResultKind         = domain.ResultKind
	Method             = domain.Method
	Parameter          = domain.Parameter
	ParameterDirection = domain.ParameterDirection
	Context            = domain.Context

	ShapeMismatchError = domain.ShapeMismatchError
	ConfigurationError = domain.ConfigurationError
	DeniedError        = behavior.DeniedError
)

// Pipeline contracts.
type (
	Behavior      = ports.Behavior
	ExecuteFunc   = ports.ExecuteFunc
	GetNextFunc   = ports.GetNextFunc
	AppliesToFunc = ports.AppliesToFunc
	Pipeline      = pipeline.Pipeline
	Proxy         = proxy.Proxy
)

const (
	In  = domain.In
	Ref = domain.Ref
	Out = domain.Out

	ResultVoid             = domain.ResultVoid
	ResultValue            = domain.ResultValue
	ResultValueWithOutputs = domain.ResultValueWithOutputs
)

var (
	// NewInvocation describes one call of method on target.
	NewInvocation = domain.NewInvocation

	// NewPipeline builds a pipeline running behaviors in the given order.
	NewPipeline = pipeline.New
	// NewPipelineChecked is NewPipeline returning an error instead of panicking.
	NewPipelineChecked = pipeline.NewChecked

	Create   = pipeline.Create
	Continue = pipeline.Continue
	Named    = pipeline.Named

	NewProxy = proxy.New

	IsShapeMismatch      = domain.IsShapeMismatch
	IsConfigurationError = domain.IsConfigurationError
	IsDenied             = behavior.IsDenied
)

// Built-in behaviors.
var (
	NewLogging      = behavior.NewLogging
	NewTracing      = behavior.NewTracing
	NewMetrics      = behavior.NewMetrics
	NewRecording    = behavior.NewRecording
	NewDefaultValue = behavior.NewDefaultValue
	NewRetry        = behavior.NewRetry
	NewThrottle     = behavior.NewThrottle
	NewWebhook      = behavior.NewWebhook
)

type WebhookConfig = behavior.WebhookConfig

// Recording and metrics support. Implement InvocationStore to keep records
// elsewhere; NewMetricsRegistry creates the collectors NewMetrics reports to.
type (
	InvocationStore  = ports.InvocationStore
	InvocationRecord = domain.InvocationRecord
	ListOptions      = ports.ListOptions
	Metrics          = telemetry.Metrics
)

const (
	// OutcomeError is the record outcome of a failed invocation.
	OutcomeError = domain.OutcomeError
	// InvocationIDKey is the Context key under which NewRecording stores the record id.
	InvocationIDKey = behavior.InvocationIDKey
)

var (
	// ErrNotFound is wrapped by stores when a record does not exist.
	ErrNotFound = ports.ErrNotFound

	NewMemoryStore     = memory.New
	NewSQLiteStore     = sqlite.New
	NewMetricsRegistry = telemetry.NewMetrics
)
