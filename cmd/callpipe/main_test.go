package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/callpipe/internal/config"
	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/server"
)

// execute runs the CLI in a fresh working directory and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "callpipe.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestCall(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name  string
		args  []string
		want  any
		kind  string
		error string
	}{
		{name: "upper", args: []string{"Upper", "hello"}, want: "HELLO", kind: "value"},
		{name: "repeat with json number", args: []string{"Repeat", "ab", "3"}, want: "ababab", kind: "value"},
		{name: "divide", args: []string{"Divide", "1", "4"}, want: 0.25, kind: "value"},
		{name: "target error", args: []string{"Divide", "1", "0"}, error: "division by zero"},
		{name: "unknown method", args: []string{"Nope"}, error: "unknown method Nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"call"}, tt.args...)...)
			if tt.error != "" {
				if err == nil || !strings.Contains(err.Error(), tt.error) {
					t.Fatalf("error = %v, want containing %q", err, tt.error)
				}
				return
			}
			if err != nil {
				t.Fatalf("call error = %v", err)
			}

			var resp server.InvokeResponse
			if err := json.Unmarshal([]byte(out), &resp); err != nil {
				t.Fatalf("invalid output %q: %v", out, err)
			}
			if resp.Kind != tt.kind || resp.ReturnValue != tt.want {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestCallAndListInvocations(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := writeConfig(t, dir, `
log:
  level: warn
storage:
  type: sqlite
  sqlite:
    path: `+filepath.Join(dir, "data", "callpipe.db")+`
pipeline:
  behaviors:
    - name: record
      type: record
    - name: retry
      type: retry
      attempts: 2
`)

	for _, args := range [][]string{{"Upper", "a"}, {"Repeat", "b", "2"}} {
		if _, err := execute(t, append([]string{"--config", cfgPath, "call"}, args...)...); err != nil {
			t.Fatalf("call %v: %v", args, err)
		}
	}
	if _, err := execute(t, "--config", cfgPath, "call", "Divide", "1", "0"); err == nil {
		t.Fatal("expected Divide by zero to fail")
	}

	out, err := execute(t, "--config", cfgPath, "invocations", "--json")
	if err != nil {
		t.Fatalf("invocations error = %v", err)
	}
	var records []*domain.InvocationRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("invalid output %q: %v", out, err)
	}
	var methods []string
	for _, rec := range records {
		methods = append(methods, rec.Method+":"+rec.Outcome)
	}
	want := []string{"Divide:error", "Repeat:value", "Upper:value"}
	if diff := cmp.Diff(want, methods); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	out, err = execute(t, "--config", cfgPath, "invocations", records[1].ID)
	if err != nil {
		t.Fatalf("invocations <id> error = %v", err)
	}
	var rec domain.InvocationRecord
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("invalid output %q: %v", out, err)
	}
	if rec.ID != records[1].ID || string(rec.ReturnValue) != `"bb"` {
		t.Errorf("record = %+v", rec)
	}

	out, err = execute(t, "--config", cfgPath, "invocations", "--method", "Upper")
	if err != nil {
		t.Fatalf("invocations --method error = %v", err)
	}
	if !strings.Contains(out, "Upper") || strings.Contains(out, "Repeat") {
		t.Errorf("table output = %q", out)
	}
}

func TestInvocations_NoStorage(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := writeConfig(t, dir, "storage:\n  type: none\n")

	if _, err := execute(t, "--config", cfgPath, "invocations"); !errors.Is(err, errNoStorage) {
		t.Errorf("error = %v, want errNoStorage", err)
	}
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	tests := []struct {
		name string
		body string
	}{
		{name: "record without storage", body: "storage:\n  type: none\npipeline:\n  behaviors:\n    - {name: rec, type: record}\n"},
		{name: "bad when expression", body: "pipeline:\n  behaviors:\n    - {name: log, type: log, when: 'method =='}\n"},
		{name: "bad log format", body: "log:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := writeConfig(t, dir, tt.body)
			if _, err := execute(t, "--config", cfgPath, "call", "Upper", "a"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	got := parseArgs([]string{"hello", "3", "1.5", "true", `"quoted"`, `[1,2]`, `{"a":1}`, "not json{"})
	want := []any{"hello", 3.0, 1.5, true, "quoted", []any{1.0, 2.0}, map[string]any{"a": 1.0}, "not json{"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseArgs() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "msg=shown") {
		t.Errorf("output = %q", out)
	}

	if _, err := newLogger(config.LogConfig{Level: "loud"}, &buf); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := newLogger(config.LogConfig{Format: "xml"}, &buf); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestRunServer_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := writeConfig(t, dir, "log:\n  level: error\n")

	a, err := newApp(&rootFlags{configPath: cfgPath}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close()
	a.cfg.Server.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, a) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runServer() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not stop after cancel")
	}
}

func TestReloadPipeline(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := writeConfig(t, dir, "log:\n  level: error\n")

	a, err := newApp(&rootFlags{configPath: cfgPath}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close()

	result, err := a.proxy.Call(context.Background(), "Upper", "a")
	if err != nil || result.ReturnValue() != "A" {
		t.Fatalf("Call() = %v, %v", result, err)
	}

	a.reloadPipeline(&config.Config{Pipeline: config.PipelineConfig{Behaviors: []config.BehaviorConfig{
		{Name: "defaults", Type: config.BehaviorDefaultValue, Methods: []string{"Upper"}},
	}}})
	result, err = a.proxy.Call(context.Background(), "Upper", "a")
	if err != nil || result.ReturnValue() != "" {
		t.Fatalf("after reload Call() = %v, %v; want zero value", result.ReturnValue(), err)
	}

	// An invalid pipeline keeps the current one.
	a.reloadPipeline(&config.Config{Pipeline: config.PipelineConfig{Behaviors: []config.BehaviorConfig{
		{Name: "bad", Type: "nope"},
	}}})
	result, err = a.proxy.Call(context.Background(), "Upper", "a")
	if err != nil || result.ReturnValue() != "" {
		t.Fatalf("after rejected reload Call() = %v, %v", result.ReturnValue(), err)
	}
}
