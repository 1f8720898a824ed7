package domain

import (
	"reflect"
	"testing"
)

func TestMethod_String(t *testing.T) {
	tests := []struct {
		name   string
		method *Method
		want   string
	}{
		{
			name:   "void without parameters",
			method: &Method{Name: "Reset"},
			want:   "Reset()",
		},
		{
			name: "typed parameters and return",
			method: &Method{
				Name: "Sum",
				Parameters: []Parameter{
					{Name: "a", Type: intType},
					{Name: "b", Type: intType, Direction: Ref},
					{Name: "c", Type: stringType, Direction: Out},
				},
				ReturnType: intType,
			},
			want: "Sum(a int, ref b int, out c string) int",
		},
		{
			name: "untyped unnamed parameter",
			method: &Method{
				Name:       "Do",
				Parameters: []Parameter{{}},
				ReturnType: reflect.TypeOf([]byte(nil)),
			},
			want: "Do(_) []uint8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.method.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMethod_OutputParameters(t *testing.T) {
	m := nonVoidMethodWithArgRefOut()

	if m.IsVoid() {
		t.Error("IsVoid() = true for method with return type")
	}
	if got := m.OutputCount(); got != 2 {
		t.Fatalf("OutputCount() = %d, want 2", got)
	}
	outs := m.OutputParameters()
	if outs[0].Name != "arg2" || outs[1].Name != "arg3" {
		t.Errorf("OutputParameters() = %v, want arg2, arg3 in declaration order", outs)
	}
	if !voidMethod().IsVoid() {
		t.Error("IsVoid() = false for method without return type")
	}
}

func TestResultKind_String(t *testing.T) {
	tests := map[ResultKind]string{
		ResultVoid:             "void",
		ResultValue:            "value",
		ResultValueWithOutputs: "value_with_outputs",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
