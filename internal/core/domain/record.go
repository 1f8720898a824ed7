package domain

import (
	"encoding/json"
	"time"
)

// InvocationRecord is the stored trace of one completed or failed invocation.
type InvocationRecord struct {
	ID         string          `json:"id"`
	Method     string          `json:"method"`
	Signature  string          `json:"signature"`
	TargetType string          `json:"target_type,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`

	// Outcome is the result kind name, or "error" when the chain failed.
	Outcome     string          `json:"outcome"`
	ReturnValue json.RawMessage `json:"return_value,omitempty"`
	Outputs     json.RawMessage `json:"outputs,omitempty"`
	Error       string          `json:"error,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// OutcomeError marks a record whose chain returned an error.
const OutcomeError = "error"
