package behavior

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
	"github.com/tjfontaine/callpipe/internal/pkg/safehttp"
)

// WebhookAction is the decision returned by a webhook.
type WebhookAction string

const (
	// WebhookProceed continues the chain.
	WebhookProceed WebhookAction = "proceed"
	// WebhookReturn ends the chain with the values supplied by the webhook.
	WebhookReturn WebhookAction = "return"
	// WebhookDeny fails the call with a DeniedError.
	WebhookDeny WebhookAction = "deny"
)

// WebhookRequest is the JSON body posted to the webhook.
type WebhookRequest struct {
	Method     string         `json:"method"`
	Signature  string         `json:"signature"`
	TargetType string         `json:"target_type,omitempty"`
	Arguments  []any          `json:"arguments"`
	Context    map[string]any `json:"context,omitempty"`
}

// WebhookResponse is the JSON body expected back from the webhook.
type WebhookResponse struct {
	Action      WebhookAction     `json:"action"`
	ReturnValue json.RawMessage   `json:"return_value,omitempty"`
	Outputs     []json.RawMessage `json:"outputs,omitempty"`
	DenyReason  string            `json:"deny_reason,omitempty"`
}

// Webhook asks an external HTTP endpoint what to do with each invocation.
type Webhook struct {
	name    string
	url     string
	onError WebhookAction // WebhookProceed or WebhookDeny
	retries int
	headers map[string]string
	client  *http.Client
}

// WebhookConfig configures a webhook behavior.
type WebhookConfig struct {
	Name    string
	URL     string
	Timeout time.Duration
	// OnError is what happens when the webhook cannot be reached or answers
	// garbage: "allow" proceeds, anything else denies (fail-closed).
	OnError string
	Retries int
	Headers map[string]string
	// BlockPrivateNetworks refuses to connect to loopback, private and
	// link-local addresses.
	BlockPrivateNetworks bool
	// Client overrides the HTTP client, e.g. for tests. Timeout and
	// BlockPrivateNetworks are ignored when set.
	Client *http.Client
}

// NewWebhook creates a new webhook behavior.
func NewWebhook(cfg WebhookConfig) *Webhook {
	onError := WebhookDeny // Default to fail-closed
	if cfg.OnError == "allow" {
		onError = WebhookProceed
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
		if cfg.BlockPrivateNetworks {
			client.Transport = safehttp.NewTransport()
		}
	}

	name := cfg.Name
	if name == "" {
		name = "webhook"
	}

	return &Webhook{
		name:    name,
		url:     cfg.URL,
		onError: onError,
		retries: cfg.Retries,
		headers: cfg.Headers,
		client:  client,
	}
}

func (b *Webhook) Name() string { return b.name }

func (b *Webhook) AppliesTo(*domain.Invocation) bool { return true }

func (b *Webhook) Execute(ctx context.Context, inv *domain.Invocation, next ports.GetNextFunc) (*domain.Result, error) {
	resp, err := b.call(ctx, inv)
	if err != nil {
		if b.onError == WebhookProceed {
			return next()(ctx, inv, next)
		}
		return nil, &DeniedError{Behavior: b.name, Reason: fmt.Sprintf("webhook error: %v", err)}
	}

	switch resp.Action {
	case WebhookReturn:
		return b.buildResult(inv, resp)
	case WebhookDeny:
		reason := resp.DenyReason
		if reason == "" {
			reason = "denied by webhook " + b.name
		}
		return nil, &DeniedError{Behavior: b.name, Reason: reason}
	default:
		return next()(ctx, inv, next)
	}
}

// call posts the invocation, retrying failed attempts.
func (b *Webhook) call(ctx context.Context, inv *domain.Invocation) (*WebhookResponse, error) {
	var lastErr error

	// Retry loop
	attempts := b.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := b.doRequest(ctx, inv)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (b *Webhook) doRequest(ctx context.Context, inv *domain.Invocation) (*WebhookResponse, error) {
	body, err := json.Marshal(WebhookRequest{
		Method:     inv.Method.Name,
		Signature:  inv.Method.String(),
		TargetType: targetType(inv),
		Arguments:  JSONSafeSlice(inv.Arguments),
		Context:    JSONSafeMap(inv.Context),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	// Add custom headers
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out WebhookResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal webhook response: %w", err)
	}

	switch out.Action {
	case WebhookProceed, WebhookReturn, WebhookDeny:
	case "":
		out.Action = WebhookProceed
	default:
		return nil, fmt.Errorf("invalid action from webhook: %s", out.Action)
	}

	return &out, nil
}

// buildResult decodes the webhook values into the declared types of the method.
func (b *Webhook) buildResult(inv *domain.Invocation, resp *WebhookResponse) (*domain.Result, error) {
	params := inv.Method.OutputParameters()
	if len(resp.Outputs) != len(params) {
		return nil, &domain.ShapeMismatchError{
			Method: inv.Method.Name,
			Want:   len(params),
			Got:    len(resp.Outputs),
			Reason: "webhook " + b.name + " returned wrong number of outputs",
		}
	}

	outputs := make([]any, len(params))
	for i, p := range params {
		v, err := decodeAs(resp.Outputs[i], p.Type)
		if err != nil {
			return nil, fmt.Errorf("webhook %s output %s: %w", b.name, p.Name, err)
		}
		outputs[i] = v
	}

	if inv.Method.IsVoid() {
		return inv.CreateVoidReturn(outputs...)
	}

	value, err := decodeAs(resp.ReturnValue, inv.Method.ReturnType)
	if err != nil {
		return nil, fmt.Errorf("webhook %s return value: %w", b.name, err)
	}
	return inv.CreateValueReturn(value, outputs...)
}

// decodeAs decodes raw into a value of type t, or into a generic value when t
// is unknown or an interface.
func decodeAs(raw json.RawMessage, t reflect.Type) (any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return zeroOf(t), nil
	}
	if t == nil || t.Kind() == reflect.Interface {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// Ensure Webhook implements the interface.
var _ ports.Behavior = (*Webhook)(nil)
