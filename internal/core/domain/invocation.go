package domain

import "fmt"

// Context is the per-call bag behaviors use to hand data to each other.
// Keys are chosen by the behaviors; writing an existing key overwrites it.
type Context map[string]any

// Lookup returns the value stored under key and whether it was present.
func (c Context) Lookup(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// Invocation describes one intercepted call. It is created once per call and
// shared by reference with every behavior in the chain.
type Invocation struct {
	// Target is the receiver the call would have been made on.
	Target any
	// Method identifies what is being called.
	Method *Method
	// Arguments are aligned with Method.Parameters, including the initial values
	// of Ref and Out parameters.
	Arguments []any
	// Context starts empty and lives exactly as long as the invocation.
	Context Context
}

// NewInvocation creates an invocation, checking that the arguments line up with
// the method's declared parameters.
func NewInvocation(target any, method *Method, args ...any) (*Invocation, error) {
	if method == nil {
		return nil, &ConfigurationError{Reason: "invocation requires a method"}
	}
	if len(args) != len(method.Parameters) {
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("method %s declares %d parameters but %d arguments were supplied",
				method.Name, len(method.Parameters), len(args)),
		}
	}

	arguments := make([]any, len(args))
	copy(arguments, args)

	return &Invocation{
		Target:    target,
		Method:    method,
		Arguments: arguments,
		Context:   make(Context),
	}, nil
}

// CreateVoidReturn builds the result of a method that returns nothing. Methods
// with Ref or Out parameters must supply one output per such parameter.
func (inv *Invocation) CreateVoidReturn(outputs ...any) (*Result, error) {
	if !inv.Method.IsVoid() {
		return nil, &ShapeMismatchError{
			Method: inv.Method.Name,
			Reason: fmt.Sprintf("method returns %s, not void", inv.Method.ReturnType),
		}
	}
	if err := inv.checkOutputs(outputs); err != nil {
		return nil, err
	}
	return inv.newResult(ResultVoid, nil, outputs), nil
}

// CreateValueReturn builds the result of a call returning value. outputs holds
// the final values of the method's Ref and Out parameters in declaration order
// and must match their count exactly.
func (inv *Invocation) CreateValueReturn(value any, outputs ...any) (*Result, error) {
	if err := inv.checkOutputs(outputs); err != nil {
		return nil, err
	}

	if inv.Method.IsVoid() {
		if value != nil {
			return nil, &ShapeMismatchError{
				Method: inv.Method.Name,
				Reason: "void method cannot return a value",
			}
		}
		return inv.newResult(ResultVoid, nil, outputs), nil
	}

	kind := ResultValue
	if len(outputs) > 0 {
		kind = ResultValueWithOutputs
	}
	return inv.newResult(kind, value, outputs), nil
}

func (inv *Invocation) checkOutputs(outputs []any) error {
	want := inv.Method.OutputCount()
	if len(outputs) != want {
		return &ShapeMismatchError{
			Method: inv.Method.Name,
			Want:   want,
			Got:    len(outputs),
			Reason: "output count does not match ref/out parameters",
		}
	}
	return nil
}

func (inv *Invocation) newResult(kind ResultKind, value any, outputs []any) *Result {
	owned := make([]any, len(outputs))
	copy(owned, outputs)
	return &Result{
		kind:        kind,
		returnValue: value,
		outputs:     owned,
		context:     inv.Context,
	}
}
