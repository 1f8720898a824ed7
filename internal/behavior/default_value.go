package behavior

import (
	"context"
	"reflect"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
)

// DefaultValue ends the chain with zero values: the zero of the return type and,
// for outputs, the current argument of Ref parameters and the zero of Out
// parameters. Unknown types produce nil.
type DefaultValue struct{}

func NewDefaultValue() *DefaultValue {
	return &DefaultValue{}
}

func (b *DefaultValue) Name() string { return "default_value" }

func (b *DefaultValue) AppliesTo(*domain.Invocation) bool { return true }

func (b *DefaultValue) Execute(_ context.Context, inv *domain.Invocation, _ ports.GetNextFunc) (*domain.Result, error) {
	var outputs []any
	for i, p := range inv.Method.Parameters {
		switch p.Direction {
		case domain.Ref:
			outputs = append(outputs, inv.Arguments[i])
		case domain.Out:
			outputs = append(outputs, zeroOf(p.Type))
		}
	}

	if inv.Method.IsVoid() {
		return inv.CreateVoidReturn(outputs...)
	}
	return inv.CreateValueReturn(zeroOf(inv.Method.ReturnType), outputs...)
}

func zeroOf(t reflect.Type) any {
	if t == nil || t.Kind() == reflect.Interface {
		return nil
	}
	return reflect.Zero(t).Interface()
}

// Ensure DefaultValue implements the interface.
var _ ports.Behavior = (*DefaultValue)(nil)
