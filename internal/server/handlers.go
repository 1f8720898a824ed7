package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/callpipe/internal/behavior"
	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
)

const maxListLimit = 1000

type ParameterView struct {
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	Direction string `json:"direction"`
}

type MethodView struct {
	Name       string          `json:"name"`
	Signature  string          `json:"signature"`
	Parameters []ParameterView `json:"parameters"`
	ReturnType string          `json:"return_type,omitempty"`
}

type MethodListResponse struct {
	Methods []MethodView `json:"methods"`
}

// InvokeRequest is the body of POST /v1/methods/{name}/invoke.
type InvokeRequest struct {
	Arguments []any `json:"arguments"`
}

// InvokeResponse mirrors domain.Result.
type InvokeResponse struct {
	Kind        string         `json:"kind"`
	ReturnValue any            `json:"return_value,omitempty"`
	Outputs     []any          `json:"outputs,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

type InvocationListResponse struct {
	Invocations []*domain.InvocationRecord `json:"invocations"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListMethods(w http.ResponseWriter, r *http.Request) {
	resp := MethodListResponse{Methods: []MethodView{}}
	for _, m := range s.caller.Methods() {
		resp.Methods = append(resp.Methods, methodView(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

func methodView(m *domain.Method) MethodView {
	view := MethodView{
		Name:       m.Name,
		Signature:  m.String(),
		Parameters: make([]ParameterView, 0, len(m.Parameters)),
	}
	for _, p := range m.Parameters {
		pv := ParameterView{Name: p.Name, Direction: p.Direction.String()}
		if p.Type != nil {
			pv.Type = p.Type.String()
		}
		view.Parameters = append(view.Parameters, pv)
	}
	if m.ReturnType != nil {
		view.ReturnType = m.ReturnType.String()
	}
	return view
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	AddLogField(r.Context(), "rpc_method", name)

	if _, ok := s.caller.Lookup(name); !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown method "+name)
		return
	}

	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return
	}

	result, err := s.caller.Call(r.Context(), name, req.Arguments...)
	if err != nil {
		AddError(r.Context(), err)
		status, errType := statusForError(err)
		writeError(w, status, errType, err.Error())
		return
	}

	if id, ok := result.Context().Lookup(behavior.InvocationIDKey); ok {
		if idStr, _ := id.(string); idStr != "" {
			AddLogField(r.Context(), "invocation_id", idStr)
		}
	}

	writeJSON(w, http.StatusOK, NewInvokeResponse(result))
}

// NewInvokeResponse renders result for JSON output. Values JSON cannot encode
// are replaced by their fmt rendering.
func NewInvokeResponse(result *domain.Result) InvokeResponse {
	resp := InvokeResponse{
		Kind:    result.Kind().String(),
		Context: behavior.JSONSafeMap(result.Context()),
	}
	if result.Kind() != domain.ResultVoid {
		resp.ReturnValue = behavior.JSONSafeSlice([]any{result.ReturnValue()})[0]
	}
	if len(result.Outputs()) > 0 {
		resp.Outputs = behavior.JSONSafeSlice(result.Outputs())
	}
	return resp
}

// statusForError maps pipeline errors to HTTP statuses.
func statusForError(err error) (int, string) {
	switch {
	case behavior.IsDenied(err):
		return http.StatusForbidden, "denied"
	case domain.IsShapeMismatch(err):
		return http.StatusBadRequest, "shape_mismatch"
	case domain.IsConfigurationError(err):
		return http.StatusBadRequest, "configuration_error"
	default:
		return http.StatusInternalServerError, "invocation_error"
	}
}

func (s *Server) handleListInvocations(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "storage not configured")
		return
	}

	limit := ports.DefaultListLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 && v <= maxListLimit {
			limit = v
		}
	}

	records, err := s.store.ListInvocations(r.Context(), ports.ListOptions{
		Method: r.URL.Query().Get("method"),
		Limit:  limit,
	})
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to list invocations: "+err.Error())
		return
	}
	if records == nil {
		records = []*domain.InvocationRecord{}
	}
	writeJSON(w, http.StatusOK, InvocationListResponse{Invocations: records})
}

func (s *Server) handleGetInvocation(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "storage not configured")
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := s.store.GetInvocation(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "invocation "+id+" not found")
		return
	}
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to get invocation: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Type: errType, Message: message}})
}
