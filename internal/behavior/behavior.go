// Package behavior provides the built-in pipeline behaviors: logging, tracing,
// metrics, recording, default values, retries, throttling and remote webhooks.
//
// Every behavior here applies to all invocations; restrict them with
// pipeline.Create or the method/when settings of the config-driven factory.
package behavior

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tjfontaine/callpipe/internal/core/domain"
)

// InvocationIDKey is the context key under which Recording stores the record ID.
const InvocationIDKey = "callpipe.invocation_id"

// DeniedError is returned when a behavior refuses to let a call proceed.
type DeniedError struct {
	Behavior string
	Reason   string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("invocation denied by %s: %s", e.Behavior, e.Reason)
}

// IsDenied returns true if the error is a behavior denial.
func IsDenied(err error) bool {
	var denied *DeniedError
	return errors.As(err, &denied)
}

// Outcome names the end state of an invocation for logs, metrics and records.
func Outcome(result *domain.Result, err error) string {
	if err != nil {
		return domain.OutcomeError
	}
	if result == nil {
		return domain.ResultVoid.String()
	}
	return result.Kind().String()
}

// jsonSafe returns v when it can be encoded as JSON, or its fmt rendering otherwise.
func jsonSafe(v any) any {
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return v
}

// JSONSafeSlice applies the same fallback to every element of values.
func JSONSafeSlice(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = jsonSafe(v)
	}
	return out
}

// JSONSafeMap applies the same fallback to every value of values.
func JSONSafeMap(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = jsonSafe(v)
	}
	return out
}

// encodeJSON encodes v after replacing values JSON cannot represent.
func encodeJSON(v any) json.RawMessage {
	var safe any
	switch vv := v.(type) {
	case []any:
		safe = JSONSafeSlice(vv)
	default:
		safe = jsonSafe(vv)
	}
	b, err := json.Marshal(safe)
	if err != nil {
		return nil
	}
	return b
}

func targetType(inv *domain.Invocation) string {
	if inv.Target == nil {
		return ""
	}
	return fmt.Sprintf("%T", inv.Target)
}
