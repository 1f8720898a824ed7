package domain

// ResultKind is the shape of a completed call.
type ResultKind int

const (
	ResultVoid ResultKind = iota
	ResultValue
	ResultValueWithOutputs
)

// String returns the snake_case name used in logs, metrics and JSON.
func (k ResultKind) String() string {
	switch k {
	case ResultValue:
		return "value"
	case ResultValueWithOutputs:
		return "value_with_outputs"
	default:
		return "void"
	}
}

// Result is the outcome of an invocation, produced either by the target or by a
// behavior that short-circuited the chain. Create one with
// Invocation.CreateVoidReturn or Invocation.CreateValueReturn.
type Result struct {
	kind        ResultKind
	returnValue any
	outputs     []any
	context     Context
}

// Kind returns the result shape.
func (r *Result) Kind() ResultKind {
	return r.kind
}

// ReturnValue returns the value returned by the call, or nil for void results.
func (r *Result) ReturnValue() any {
	return r.returnValue
}

// Outputs returns the final values of the method's Ref and Out parameters.
func (r *Result) Outputs() []any {
	return r.outputs
}

// Context returns the context bag of the originating invocation. It is the same
// map, so values written by behaviors after the result was built are visible too.
func (r *Result) Context() Context {
	return r.context
}
