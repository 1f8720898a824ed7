// Package proxy routes calls on a target object through a pipeline.
//
// A Proxy holds the methods of one target. Each method is registered either
// with an explicit Method and terminal handler, or derived from a Go func:
//
//	p := proxy.New(pipe, calc)
//	_ = p.RegisterFunc("Divide", calc.Divide, "a", "b")
//	result, err := p.Call(ctx, "Divide", 1.0, 2.0)
//
// Every Call builds an Invocation and hands it to the pipeline with the
// registered handler as the target of the chain.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
)

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

type invoker struct {
	ports.PipelineInvoker
}

type entry struct {
	method  *domain.Method
	handler ports.ExecuteFunc
}

// Proxy forwards calls on a target into a pipeline.
type Proxy struct {
	pipeline atomic.Pointer[invoker]
	target   any

	mu      sync.RWMutex
	methods map[string]entry
}

// New creates a proxy for target. target may be nil when no real object exists.
func New(p ports.PipelineInvoker, target any) *Proxy {
	px := &Proxy{
		target:  target,
		methods: make(map[string]entry),
	}
	px.SetPipeline(p)
	return px
}

// SetPipeline replaces the pipeline used by subsequent calls. Calls already
// running finish on the pipeline they started with.
func (p *Proxy) SetPipeline(inv ports.PipelineInvoker) {
	p.pipeline.Store(&invoker{inv})
}

// Target returns the proxied object.
func (p *Proxy) Target() any {
	return p.target
}

// Register adds a method whose calls end in handler.
func (p *Proxy) Register(method *domain.Method, handler ports.ExecuteFunc) error {
	if method == nil || method.Name == "" {
		return &domain.ConfigurationError{Reason: "method must have a name"}
	}
	if handler == nil {
		return &domain.ConfigurationError{Reason: fmt.Sprintf("method %s has no handler", method.Name)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.methods[method.Name]; exists {
		return &domain.ConfigurationError{Reason: fmt.Sprintf("method %s already registered", method.Name)}
	}
	p.methods[method.Name] = entry{method: method, handler: handler}
	return nil
}

// RegisterFunc derives a method from fn and registers it. fn may take a leading
// context.Context, which is not part of the method signature. A trailing error
// result becomes the error of the call; at most one other result is allowed and
// becomes the return type. paramNames name the parameters in order; missing
// names default to arg0, arg1 and so on. Numeric arguments are converted to
// the parameter type when the value survives the conversion; a float64 passed
// to a float32 parameter is rounded.
func (p *Proxy) RegisterFunc(name string, fn any, paramNames ...string) error {
	method, handler, err := methodFromFunc(name, fn, paramNames)
	if err != nil {
		return err
	}
	return p.Register(method, handler)
}

// Lookup returns the registered method called name.
func (p *Proxy) Lookup(name string) (*domain.Method, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.methods[name]
	return e.method, ok
}

// Methods returns the registered methods sorted by name.
func (p *Proxy) Methods() []*domain.Method {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*domain.Method, 0, len(p.methods))
	for _, e := range p.methods {
		result = append(result, e.method)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Call invokes the method called name with args through the pipeline.
func (p *Proxy) Call(ctx context.Context, name string, args ...any) (*domain.Result, error) {
	p.mu.RLock()
	e, ok := p.methods[name]
	p.mu.RUnlock()
	if !ok {
		return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("unknown method %s", name)}
	}

	inv, err := domain.NewInvocation(p.target, e.method, args...)
	if err != nil {
		return nil, err
	}
	return p.pipeline.Load().Invoke(ctx, inv, e.handler)
}

func methodFromFunc(name string, fn any, paramNames []string) (*domain.Method, ports.ExecuteFunc, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, nil, &domain.ConfigurationError{Reason: fmt.Sprintf("method %s: %T is not a func", name, fn)}
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return nil, nil, &domain.ConfigurationError{Reason: fmt.Sprintf("method %s: variadic funcs are not supported", name)}
	}

	first := 0
	takesContext := ft.NumIn() > 0 && ft.In(0) == contextType
	if takesContext {
		first = 1
	}

	method := &domain.Method{Name: name}
	for i := first; i < ft.NumIn(); i++ {
		idx := i - first
		pname := fmt.Sprintf("arg%d", idx)
		if idx < len(paramNames) && paramNames[idx] != "" {
			pname = paramNames[idx]
		}
		method.Parameters = append(method.Parameters, domain.Parameter{Name: pname, Type: ft.In(i)})
	}

	returnsError := ft.NumOut() > 0 && ft.Out(ft.NumOut()-1) == errorType
	values := ft.NumOut()
	if returnsError {
		values--
	}
	if values > 1 {
		return nil, nil, &domain.ConfigurationError{Reason: fmt.Sprintf("method %s: at most one result besides error is supported", name)}
	}
	if values == 1 {
		method.ReturnType = ft.Out(0)
	}

	handler := func(ctx context.Context, inv *domain.Invocation, _ ports.GetNextFunc) (*domain.Result, error) {
		in := make([]reflect.Value, 0, ft.NumIn())
		if takesContext {
			in = append(in, reflect.ValueOf(ctx))
		}
		for i, param := range inv.Method.Parameters {
			v, err := convertArg(inv.Arguments[i], param.Type)
			if err != nil {
				return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("method %s argument %s: %v", name, param.Name, err)}
			}
			in = append(in, v)
		}

		out := fv.Call(in)
		if returnsError {
			if errv := out[len(out)-1]; !errv.IsNil() {
				return nil, errv.Interface().(error)
			}
		}
		if method.IsVoid() {
			return inv.CreateVoidReturn()
		}
		return inv.CreateValueReturn(out[0].Interface())
	}

	return method, handler, nil
}

// convertArg turns v into a value of type t. It accepts assignable values,
// integer conversions that keep both value and sign, float conversions that do
// not overflow, and anything that round-trips through JSON, which covers
// arguments decoded from request bodies.
func convertArg(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if isNumber(rv.Kind()) && isNumber(t.Kind()) {
		converted := rv.Convert(t)
		if rv.CanFloat() && converted.CanFloat() {
			// Narrowing a float rounds to the nearest float32; only overflow is refused.
			if converted.OverflowFloat(rv.Float()) {
				return reflect.Value{}, fmt.Errorf("%v does not fit in %s", v, t)
			}
			return converted, nil
		}
		back := converted.Convert(rv.Type())
		if back.Equal(rv) && isNegative(rv) == isNegative(converted) {
			return converted, nil
		}
		return reflect.Value{}, fmt.Errorf("%v does not fit in %s", v, t)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s: %w", v, t, err)
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s: %w", v, t, err)
	}
	return ptr.Elem(), nil
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isNegative(v reflect.Value) bool {
	switch {
	case v.CanInt():
		return v.Int() < 0
	case v.CanFloat():
		return v.Float() < 0
	}
	return false
}
