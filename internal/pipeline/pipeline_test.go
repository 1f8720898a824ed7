package pipeline

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
)

var anyType = reflect.TypeOf((*any)(nil)).Elem()

func newInvocation(t *testing.T, method *domain.Method, args ...any) *domain.Invocation {
	t.Helper()
	inv, err := domain.NewInvocation(t, method, args...)
	if err != nil {
		t.Fatalf("NewInvocation() error = %v", err)
	}
	return inv
}

func voidMethod() *domain.Method {
	return &domain.Method{Name: "VoidMethod"}
}

func nonVoidMethod() *domain.Method {
	return &domain.Method{Name: "NonVoidMethod", ReturnType: anyType}
}

// passThrough returns a behavior that flags itself and continues the chain.
func passThrough(called *bool) ports.ExecuteFunc {
	return func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
		*called = true
		return next()(ctx, inv, next)
	}
}

func valueTarget(called *bool) ports.ExecuteFunc {
	return func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
		*called = true
		return inv.CreateValueReturn(nil)
	}
}

func notImplemented(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
	return nil, errors.New("not implemented")
}

func TestInvoke_InvokesAllBehaviorsAndTarget(t *testing.T) {
	var firstCalled, secondCalled, targetCalled bool

	p := New(passThrough(&firstCalled), passThrough(&secondCalled))

	_, err := p.Invoke(context.Background(), newInvocation(t, voidMethod()), valueTarget(&targetCalled))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if !firstCalled || !secondCalled || !targetCalled {
		t.Errorf("called = %v, %v, %v; want all true", firstCalled, secondCalled, targetCalled)
	}
}

func TestInvoke_SkipsNonApplicableBehaviors(t *testing.T) {
	var firstCalled, secondCalled, targetCalled bool

	p := New(
		Create(passThrough(&firstCalled), nil),
		Create(passThrough(&secondCalled), func(*domain.Invocation) bool { return false }),
	)

	_, err := p.Invoke(context.Background(), newInvocation(t, voidMethod()), valueTarget(&targetCalled))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if !firstCalled {
		t.Error("expected first behavior to run")
	}
	if secondCalled {
		t.Error("expected non-applicable behavior to be skipped")
	}
	if !targetCalled {
		t.Error("expected target to run")
	}
}

func TestInvoke_BehaviorCanShortCircuit(t *testing.T) {
	var firstCalled, secondCalled, targetCalled bool

	p := New(
		ports.ExecuteFunc(func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
			firstCalled = true
			return inv.CreateValueReturn(nil)
		}),
		passThrough(&secondCalled),
	)

	_, err := p.Invoke(context.Background(), newInvocation(t, voidMethod()), valueTarget(&targetCalled))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if !firstCalled {
		t.Error("expected first behavior to run")
	}
	if secondCalled || targetCalled {
		t.Errorf("secondCalled = %v, targetCalled = %v; want both false after short-circuit", secondCalled, targetCalled)
	}
}

func TestInvoke_BehaviorsCanPassDataWithContext(t *testing.T) {
	expected := uuid.New()
	var actual uuid.UUID

	p := New(
		ports.ExecuteFunc(func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
			inv.Context["guid"] = expected
			return next()(ctx, inv, next)
		}),
		ports.ExecuteFunc(func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
			actual = inv.Context["guid"].(uuid.UUID)
			return next()(ctx, inv, next)
		}),
	)

	result, err := p.Invoke(context.Background(), newInvocation(t, voidMethod()),
		func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
			return inv.CreateValueReturn(nil)
		})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if actual != expected {
		t.Errorf("second behavior saw %v, want %v", actual, expected)
	}
	got, ok := result.Context().Lookup("guid")
	if !ok {
		t.Fatal("expected result context to contain guid")
	}
	if got != expected {
		t.Errorf("result context guid = %v, want %v", got, expected)
	}
}

func TestInvoke_BehaviorsCanReturnValue(t *testing.T) {
	expected := &struct{}{}

	p := New(ports.ExecuteFunc(func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
		return inv.CreateValueReturn(expected)
	}))

	result, err := p.Invoke(context.Background(), newInvocation(t, nonVoidMethod()), notImplemented)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result.ReturnValue() != expected {
		t.Errorf("ReturnValue() = %v, want %v", result.ReturnValue(), expected)
	}
}

func TestInvoke_BehaviorsCanReturnOutputs(t *testing.T) {
	expected := &struct{ n int }{1}
	byref := &struct{ n int }{2}
	output := &struct{ n int }{3}

	tests := []struct {
		name    string
		params  []domain.Parameter
		args    []any
		outputs []any
	}{
		{
			name:   "with arg",
			params: []domain.Parameter{{Name: "arg"}},
			args:   []any{expected},
		},
		{
			name:    "with ref",
			params:  []domain.Parameter{{Name: "arg1"}, {Name: "arg2", Direction: domain.Ref}},
			args:    []any{expected, output},
			outputs: []any{output},
		},
		{
			name:    "with out",
			params:  []domain.Parameter{{Name: "arg1"}, {Name: "arg2", Direction: domain.Out}},
			args:    []any{expected, output},
			outputs: []any{output},
		},
		{
			name:    "with ref and out",
			params:  []domain.Parameter{{Name: "arg1"}, {Name: "arg2", Direction: domain.Ref}, {Name: "arg3", Direction: domain.Out}},
			args:    []any{expected, byref, output},
			outputs: []any{byref, output},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := &domain.Method{Name: "NonVoidMethod", Parameters: tt.params, ReturnType: anyType}
			outputs := tt.outputs

			p := New(ports.ExecuteFunc(func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
				return inv.CreateValueReturn(expected, outputs...)
			}))

			result, err := p.Invoke(context.Background(), newInvocation(t, method, tt.args...), notImplemented)
			if err != nil {
				t.Fatalf("Invoke() error = %v", err)
			}
			if result.ReturnValue() != expected {
				t.Errorf("ReturnValue() = %v, want %v", result.ReturnValue(), expected)
			}
			if len(result.Outputs()) != len(tt.outputs) {
				t.Fatalf("Outputs() = %v, want %v", result.Outputs(), tt.outputs)
			}
			for i, want := range tt.outputs {
				if result.Outputs()[i] != want {
					t.Errorf("Outputs()[%d] = %v, want %v", i, result.Outputs()[i], want)
				}
			}
		})
	}
}

func TestInvoke_ShapeMismatchPropagates(t *testing.T) {
	p := New(ports.ExecuteFunc(func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
		return inv.CreateValueReturn("v", "unexpected output")
	}))

	result, err := p.Invoke(context.Background(), newInvocation(t, nonVoidMethod()), notImplemented)
	if !domain.IsShapeMismatch(err) {
		t.Fatalf("expected ShapeMismatchError, got %v", err)
	}
	if result != nil {
		t.Error("expected no result with error")
	}
}

func TestInvoke_CallOrder(t *testing.T) {
	var order []string
	record := func(name string) ports.ExecuteFunc {
		return func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
			order = append(order, name+":before")
			result, err := next()(ctx, inv, next)
			order = append(order, name+":after")
			return result, err
		}
	}

	p := New(record("first"), Create(record("skipped"), func(*domain.Invocation) bool { return false }), record("second"))
	target := func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
		order = append(order, "target")
		return inv.CreateValueReturn(42)
	}

	want := []string{"first:before", "second:before", "target", "second:after", "first:after"}
	for run := 0; run < 2; run++ {
		order = nil
		result, err := p.Invoke(context.Background(), newInvocation(t, nonVoidMethod()), target)
		if err != nil {
			t.Fatalf("run %d: Invoke() error = %v", run, err)
		}
		if result.ReturnValue() != 42 {
			t.Errorf("run %d: ReturnValue() = %v, want 42", run, result.ReturnValue())
		}
		if diff := cmp.Diff(want, order); diff != "" {
			t.Errorf("run %d: order mismatch (-want +got):\n%s", run, diff)
		}
	}
}

func TestInvoke_BehaviorCanTransformDownstreamResult(t *testing.T) {
	p := New(ports.ExecuteFunc(func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
		result, err := Continue(ctx, inv, next)
		if err != nil {
			return nil, err
		}
		return inv.CreateValueReturn(result.ReturnValue().(int) * 2)
	}))

	result, err := p.Invoke(context.Background(), newInvocation(t, nonVoidMethod()),
		func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
			return inv.CreateValueReturn(21)
		})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result.ReturnValue() != 42 {
		t.Errorf("ReturnValue() = %v, want 42", result.ReturnValue())
	}
}

func TestInvoke_NextCanBeCalledRepeatedly(t *testing.T) {
	targetCalls := 0

	p := New(ports.ExecuteFunc(func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
		var result *domain.Result
		var err error
		for i := 0; i < 3; i++ {
			result, err = next()(ctx, inv, next)
			if err == nil {
				return result, nil
			}
		}
		return nil, err
	}))

	result, err := p.Invoke(context.Background(), newInvocation(t, nonVoidMethod()),
		func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
			targetCalls++
			if targetCalls < 3 {
				return nil, errors.New("transient")
			}
			return inv.CreateValueReturn("ok")
		})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if targetCalls != 3 {
		t.Errorf("targetCalls = %d, want 3", targetCalls)
	}
	if result.ReturnValue() != "ok" {
		t.Errorf("ReturnValue() = %v, want ok", result.ReturnValue())
	}
}

func TestInvoke_ErrorsPropagateUnchanged(t *testing.T) {
	fault := errors.New("boom")
	var outerSawErr error

	p := New(
		ports.ExecuteFunc(func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
			result, err := next()(ctx, inv, next)
			outerSawErr = err
			return result, err
		}),
		ports.ExecuteFunc(func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
			// A faulty behavior that returns a result alongside its error.
			result, _ := inv.CreateValueReturn("partial")
			return result, fault
		}),
	)

	result, err := p.Invoke(context.Background(), newInvocation(t, nonVoidMethod()), notImplemented)
	if err != fault {
		t.Fatalf("Invoke() error = %v, want %v", err, fault)
	}
	if outerSawErr != fault {
		t.Errorf("outer behavior saw %v, want %v", outerSawErr, fault)
	}
	if result != nil {
		t.Error("expected no result alongside an error")
	}
}

func TestInvoke_NoBehaviorsCallsTarget(t *testing.T) {
	var targetCalled bool
	p := New()

	if _, err := p.Invoke(context.Background(), newInvocation(t, voidMethod()), valueTarget(&targetCalled)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !targetCalled {
		t.Error("expected target to be called directly")
	}
}

func TestInvoke_NilTarget(t *testing.T) {
	var called bool
	p := New(passThrough(&called))

	_, err := p.Invoke(context.Background(), newInvocation(t, voidMethod()), nil)
	if !domain.IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !called {
		t.Error("expected behavior to run before reaching the missing target")
	}
}

func TestInvoke_TargetCallingNext(t *testing.T) {
	p := New()

	_, err := p.Invoke(context.Background(), newInvocation(t, voidMethod()), func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
		return next()(ctx, inv, next)
	})
	if !domain.IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestInvoke_PredicateSeesInvocation(t *testing.T) {
	var called bool
	onlyNonVoid := func(inv *domain.Invocation) bool { return !inv.Method.IsVoid() }
	p := New(Create(passThrough(&called), onlyNonVoid))

	target := func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
		return inv.CreateValueReturn(nil)
	}

	if _, err := p.Invoke(context.Background(), newInvocation(t, voidMethod()), target); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if called {
		t.Error("behavior ran for void method")
	}

	if _, err := p.Invoke(context.Background(), newInvocation(t, nonVoidMethod()), target); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !called {
		t.Error("behavior did not run for non-void method")
	}
}

func TestInvoke_PredicatesRunInConfiguredOrder(t *testing.T) {
	var order []string
	record := func(name string) ports.AppliesToFunc {
		return func(*domain.Invocation) bool {
			order = append(order, name)
			return true
		}
	}
	p := New(
		Create(notImplemented, record("first")),
		Create(notImplemented, record("second")),
		Create(notImplemented, record("third")),
	)

	_, _ = p.Invoke(context.Background(), newInvocation(t, voidMethod()), notImplemented)

	if diff := cmp.Diff([]string{"first", "second", "third"}, order); diff != "" {
		t.Errorf("predicate order mismatch (-want +got):\n%s", diff)
	}
}

func TestInvoke_NilResultWithoutError(t *testing.T) {
	empty := func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
		return nil, nil
	}

	tests := []struct {
		name      string
		behaviors []ports.Behavior
		target    ports.ExecuteFunc
	}{
		{name: "target", target: empty},
		{name: "behavior", behaviors: []ports.Behavior{ports.ExecuteFunc(empty)}, target: notImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := New(tt.behaviors...).Invoke(context.Background(), newInvocation(t, voidMethod()), tt.target)
			if !domain.IsConfigurationError(err) {
				t.Fatalf("Invoke() = %v, %v; want ConfigurationError", result, err)
			}
			if result != nil {
				t.Errorf("result = %v, want nil", result)
			}
		})
	}
}

func TestInvoke_ConcurrentCalls(t *testing.T) {
	p := New(ports.ExecuteFunc(func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
		inv.Context["arg"] = inv.Arguments[0]
		return next()(ctx, inv, next)
	}))
	method := &domain.Method{Name: "Echo", Parameters: []domain.Parameter{{Name: "v"}}, ReturnType: anyType}

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := domain.NewInvocation(nil, method, i)
			if err != nil {
				errs <- err
				return
			}
			result, err := p.Invoke(context.Background(), inv, func(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
				return inv.CreateValueReturn(inv.Context["arg"])
			})
			if err != nil {
				errs <- err
				return
			}
			if result.ReturnValue() != i {
				errs <- errors.New("result crossed between invocations")
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestNewChecked_NilBehavior(t *testing.T) {
	_, err := NewChecked(ports.ExecuteFunc(notImplemented), nil)
	if !domain.IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected New to panic on nil behavior")
		}
	}()
	New(nil)
}

func TestPipeline_BehaviorsIsCopy(t *testing.T) {
	p := New(ports.ExecuteFunc(notImplemented), Named("named", ports.ExecuteFunc(notImplemented)))

	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}
	bs := p.Behaviors()
	bs[0] = nil
	if p.Behaviors()[0] == nil {
		t.Error("Behaviors() exposed internal slice")
	}
	if got := NameOf(p.Behaviors()[1]); got != "named" {
		t.Errorf("NameOf() = %q, want named", got)
	}
	if got := NameOf(p.Behaviors()[0]); got != "" {
		t.Errorf("NameOf() = %q, want empty", got)
	}
}
