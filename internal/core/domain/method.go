// Package domain contains the core types of a method call: the method identity,
// the invocation being intercepted and the result it produces.
package domain

import (
	"reflect"
	"strings"
)

// ParameterDirection tells how a parameter value flows between caller and callee.
type ParameterDirection int

const (
	// In parameters are passed by value.
	In ParameterDirection = iota
	// Ref parameters are passed by reference; the callee may write a new value back.
	Ref
	// Out parameters carry no meaningful input; the callee must produce a value.
	Out
)

// String returns the direction keyword used in signatures.
func (d ParameterDirection) String() string {
	switch d {
	case Ref:
		return "ref"
	case Out:
		return "out"
	default:
		return "in"
	}
}

// Parameter describes one declared parameter of a method.
type Parameter struct {
	Name string
	// Type is optional. When nil, the shape is unknown and only the direction matters.
	Type      reflect.Type
	Direction ParameterDirection
}

// IsOutput reports whether the parameter produces a value in the call result.
func (p Parameter) IsOutput() bool {
	return p.Direction == Ref || p.Direction == Out
}

// Method is the identity of a method being called. It is supplied by whatever
// produces invocations and is never mutated once an invocation refers to it.
type Method struct {
	Name       string
	Parameters []Parameter
	// ReturnType is nil for methods that return nothing.
	ReturnType reflect.Type
}

// IsVoid reports whether the method returns nothing.
func (m *Method) IsVoid() bool {
	return m.ReturnType == nil
}

// OutputParameters returns the Ref and Out parameters in declaration order.
func (m *Method) OutputParameters() []Parameter {
	var out []Parameter
	for _, p := range m.Parameters {
		if p.IsOutput() {
			out = append(out, p)
		}
	}
	return out
}

// OutputCount returns the number of Ref and Out parameters.
func (m *Method) OutputCount() int {
	n := 0
	for _, p := range m.Parameters {
		if p.IsOutput() {
			n++
		}
	}
	return n
}

// String renders the method as a signature, e.g. "Sum(a int, ref b int) int".
func (m *Method) String() string {
	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.Parameters {
		if i > 0 {
			b.WriteString(", ")
		}
		if p.Direction != In {
			b.WriteString(p.Direction.String())
			b.WriteByte(' ')
		}
		name := p.Name
		if name == "" {
			name = "_"
		}
		b.WriteString(name)
		if p.Type != nil {
			b.WriteByte(' ')
			b.WriteString(p.Type.String())
		}
	}
	b.WriteByte(')')
	if m.ReturnType != nil {
		b.WriteByte(' ')
		b.WriteString(m.ReturnType.String())
	}
	return b.String()
}
