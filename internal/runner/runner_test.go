package runner_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/petasbytes/turnkit/internal/provider"
	"github.com/petasbytes/turnkit/internal/runner"
	"github.com/petasbytes/turnkit/internal/telemetry"
	"github.com/petasbytes/turnkit/message"
	"github.com/petasbytes/turnkit/tools"
)

// scripted replays responses in order and records every request.
type scripted struct {
	mu        sync.Mutex
	responses []*provider.Response
	err       error
	requests  []*provider.Request
}

func (s *scripted) Generate(_ context.Context, req *provider.Request) (*provider.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, &provider.Request{
		Messages: message.CloneAll(req.Messages),
		Tools:    req.Tools,
		Params:   req.Params,
		Output:   req.Output,
	})
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return &provider.Response{Text: "done"}, nil
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r, nil
}

func toolCall(id, name, input string) *provider.Response {
	return &provider.Response{ToolCalls: []provider.ToolCall{{ID: id, Name: name, Input: json.RawMessage(input)}}}
}

type listInput struct {
	Path string `json:"path"`
}

func listTool() tools.ToolDefinition {
	return tools.Typed("list_files", "List files.", func(_ context.Context, in listInput) ([]string, error) {
		return []string{in.Path + "/a.txt"}, nil
	})
}

func errTool() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "err_tool",
		Description: "always errors",
		InputSchema: tools.GenerateSchema[struct{}](),
		Function: func(context.Context, json.RawMessage) (string, error) {
			return "", fmt.Errorf("boom")
		},
	}
}

func observe(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AGT_OBSERVE_JSON", "1")
	t.Setenv("AGT_ARTIFACTS_DIR", dir)
	return dir
}

func readEventLines(t *testing.T, dir string) []string {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, telemetry.EventsFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	defer f.Close()
	var lines []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		if txt := strings.TrimSpace(s.Text()); txt != "" {
			lines = append(lines, txt)
		}
	}
	return lines
}

func lastEvent(t *testing.T, dir, name string) map[string]any {
	t.Helper()
	lines := readEventLines(t, dir)
	for i := len(lines) - 1; i >= 0; i-- {
		var m map[string]any
		if err := json.Unmarshal([]byte(lines[i]), &m); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if m["event"] == name {
			return m
		}
	}
	t.Fatalf("no %s event found", name)
	return nil
}

func TestRunner_PlainReply(t *testing.T) {
	b := &scripted{responses: []*provider.Response{{Text: "hi"}}}
	r := runner.New(b, tools.NewRegistry(listTool()), 0)
	resp, exchanged, err := r.Run(context.Background(), runner.Request{Messages: []message.Message{message.User("hello")}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.Text != "hi" || len(exchanged) != 0 {
		t.Fatalf("got %q with %d exchanged messages", resp.Text, len(exchanged))
	}
	if len(b.requests) != 1 || len(b.requests[0].Tools) != 1 || b.requests[0].Tools[0].Name != "list_files" {
		t.Fatalf("tools not offered: %+v", b.requests)
	}
}

func TestRunner_ToolUse_ExecutesToolAndContinues(t *testing.T) {
	b := &scripted{responses: []*provider.Response{
		toolCall("t1", "list_files", `{"path":"."}`),
		{Text: "there is a.txt"},
	}}
	r := runner.New(b, tools.NewRegistry(listTool()), 4)
	in := []message.Message{message.User("please list files")}
	resp, exchanged, err := r.Run(context.Background(), runner.Request{Messages: in})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.Text != "there is a.txt" {
		t.Fatalf("final text: %q", resp.Text)
	}
	if len(exchanged) != 2 {
		t.Fatalf("expected call+result, got %d", len(exchanged))
	}
	call, result := exchanged[0], exchanged[1]
	if call.Role != message.RoleAssistant || call.Content.Parts[0].Type != message.PartToolCall || call.Content.Parts[0].ToolCallID != "t1" {
		t.Fatalf("tool call message: %+v", call)
	}
	rp := result.Content.Parts[0]
	if result.Role != message.RoleTool || rp.Type != message.PartToolResult || rp.ToolCallID != "t1" || rp.IsError {
		t.Fatalf("tool result message: %+v", result)
	}
	if rp.Text != `["./a.txt"]` {
		t.Fatalf("tool output: %q", rp.Text)
	}

	// Second request carries the call and result adjacent, after the input.
	second := b.requests[1].Messages
	if len(second) != 3 || second[1].Role != message.RoleAssistant || second[2].Role != message.RoleTool {
		t.Fatalf("second request transcript: %+v", second)
	}
	// Input slice is not appended to.
	if len(in) != 1 {
		t.Fatalf("caller messages mutated: %d", len(in))
	}
}

func TestRunner_ToolErrorsBecomeResults(t *testing.T) {
	b := &scripted{responses: []*provider.Response{
		{ToolCalls: []provider.ToolCall{
			{ID: "e1", Name: "err_tool", Input: json.RawMessage(`{"x":1}`)},
			{ID: "nf1", Name: "does_not_exist", Input: json.RawMessage(`{}`)},
		}},
		{Text: "sorry"},
	}}
	r := runner.New(b, tools.NewRegistry(errTool()), 4)
	_, exchanged, err := r.Run(context.Background(), runner.Request{Messages: []message.Message{message.User("x")}})
	if err != nil {
		t.Fatalf("tool failures must not surface as errors: %v", err)
	}
	parts := exchanged[1].Content.Parts
	if len(parts) != 2 {
		t.Fatalf("expected 2 results, got %d", len(parts))
	}
	for i, want := range []string{"err_tool", "does_not_exist"} {
		var body map[string]string
		if err := json.Unmarshal([]byte(parts[i].Text), &body); err != nil {
			t.Fatalf("result %d not JSON: %q", i, parts[i].Text)
		}
		if !parts[i].IsError || body["toolName"] != want || body["error"] == "" {
			t.Errorf("result %d: %+v", i, parts[i])
		}
	}
}

func TestRunner_MaxHops(t *testing.T) {
	loop := make([]*provider.Response, 10)
	for i := range loop {
		loop[i] = toolCall(fmt.Sprintf("t%d", i), "list_files", `{"path":"."}`)
	}
	b := &scripted{responses: loop}
	r := runner.New(b, tools.NewRegistry(listTool()), 3)
	_, _, err := r.Run(context.Background(), runner.Request{Messages: []message.Message{message.User("x")}})
	if !errors.Is(err, runner.ErrMaxHops) {
		t.Fatalf("expected ErrMaxHops, got %v", err)
	}
	if len(b.requests) != 3 {
		t.Fatalf("expected 3 backend calls, got %d", len(b.requests))
	}
}

func TestRunner_BackendErrorPropagates(t *testing.T) {
	boom := errors.New("upstream down")
	r := runner.New(&scripted{err: boom}, nil, 1)
	_, _, err := r.Run(context.Background(), runner.Request{Messages: []message.Message{message.User("x")}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}

func TestRunner_ToolExec_JSONL_Success(t *testing.T) {
	dir := observe(t)
	b := &scripted{responses: []*provider.Response{toolCall("t1", "list_files", `{"path":"."}`)}}
	r := runner.New(b, tools.NewRegistry(listTool()), 4)

	ctx := telemetry.WithTurnID(context.Background(), "turn-xyz")
	if _, _, err := r.Run(ctx, runner.Request{Messages: []message.Message{message.User("please list files")}}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	exec := lastEvent(t, dir, "tool_exec")
	if exec["tool_name"] != "list_files" {
		t.Errorf("tool_name: want list_files, got %v", exec["tool_name"])
	}
	if v, ok := exec["duration_ms"].(float64); !ok || v < 0 {
		t.Errorf("duration_ms should be >= 0, got %v", exec["duration_ms"])
	}
	if v, ok := exec["input_size"].(float64); !ok || v != float64(len(`{"path":"."}`)) {
		t.Errorf("input_size: got %v", exec["input_size"])
	}
	if v, ok := exec["output_size"].(float64); !ok || v <= 0 {
		t.Errorf("output_size should be > 0, got %v", exec["output_size"])
	}
	if v, ok := exec["error"]; !ok || v != nil {
		t.Errorf("error should be present and null on success, got %v", v)
	}
	if exec["turn_id"] != "turn-xyz" {
		t.Errorf("turn_id = %v", exec["turn_id"])
	}
}

func TestRunner_ToolExec_JSONL_Errors(t *testing.T) {
	dir := observe(t)
	b := &scripted{responses: []*provider.Response{
		toolCall("e1", "err_tool", `{"x":1}`),
		toolCall("nf1", "does_not_exist", `{"a":1}`),
	}}
	r := runner.New(b, tools.NewRegistry(errTool()), 4)
	if _, _, err := r.Run(context.Background(), runner.Request{Messages: []message.Message{message.User("x")}}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	var execs []map[string]any
	for _, line := range readEventLines(t, dir) {
		var m map[string]any
		_ = json.Unmarshal([]byte(line), &m)
		if m["event"] == "tool_exec" {
			execs = append(execs, m)
		}
	}
	if len(execs) != 2 {
		t.Fatalf("expected 2 tool_exec events, got %d", len(execs))
	}
	if execs[0]["error"] != "tool error" || execs[1]["error"] != "tool not found" {
		t.Errorf("error strings: %v / %v", execs[0]["error"], execs[1]["error"])
	}
	for _, e := range execs {
		if v, ok := e["output_size"].(float64); !ok || v != 0 {
			t.Errorf("output_size should be 0 on error, got %v", e["output_size"])
		}
		if s, ok := e["turn_id"].(string); !ok || !strings.HasPrefix(s, "turn-") {
			t.Errorf("generated turn_id missing: %v", e["turn_id"])
		}
	}
	if execs[0]["turn_id"] != execs[1]["turn_id"] {
		t.Errorf("turn_id should be stable across hops")
	}
}

func TestRunner_ToolExec_Gating_Off_NoWrites(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGT_ARTIFACTS_DIR", dir)
	b := &scripted{responses: []*provider.Response{toolCall("t1", "list_files", `{"path":"."}`)}}
	r := runner.New(b, tools.NewRegistry(listTool()), 4)
	if _, _, err := r.Run(context.Background(), runner.Request{Messages: []message.Message{message.User("x")}}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !telemetry.ObserveEnabled() && len(readEventLines(t, dir)) != 0 {
		t.Fatalf("expected no events when AGT_OBSERVE_JSON is off")
	}
}

func TestRunner_ToolExec_Privacy_NoRawPayloadLeak(t *testing.T) {
	dir := observe(t)
	secret := "__SECRET_NEVER_APPEAR__"
	b := &scripted{responses: []*provider.Response{toolCall("t1", "list_files", fmt.Sprintf(`{"path":%q}`, secret))}}
	r := runner.New(b, tools.NewRegistry(listTool()), 4)
	if _, _, err := r.Run(context.Background(), runner.Request{Messages: []message.Message{message.User("x")}}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for _, line := range readEventLines(t, dir) {
		if strings.Contains(line, secret) {
			t.Fatalf("raw payload leaked into telemetry: %q", line)
		}
	}
}

// sequenceTransport answers successive HTTP requests with successive bodies.
type sequenceTransport struct {
	mu     sync.Mutex
	bodies []string
	seen   [][]byte
}

func (s *sequenceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	b, _ := io.ReadAll(req.Body)
	_ = req.Body.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, b)
	body := s.bodies[0]
	if len(s.bodies) > 1 {
		s.bodies = s.bodies[1:]
	}
	resp := &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

func TestRunner_WithAnthropicBackend(t *testing.T) {
	rt := &sequenceTransport{bodies: []string{
		`{"id":"m1","type":"message","role":"assistant","model":"m","stop_reason":"tool_use",
		  "content":[{"type":"tool_use","id":"t1","name":"list_files","input":{"path":"."}}],
		  "usage":{"input_tokens":1,"output_tokens":1}}`,
		`{"id":"m2","type":"message","role":"assistant","model":"m","stop_reason":"end_turn",
		  "content":[{"type":"text","text":"found a.txt"}],
		  "usage":{"input_tokens":1,"output_tokens":1}}`,
	}}
	cli := provider.NewAnthropicClient(
		option.WithHTTPClient(&http.Client{Transport: rt}),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	r := runner.New(provider.NewAnthropic(cli, ""), tools.NewRegistry(listTool()), 4)
	resp, _, err := r.Run(context.Background(), runner.Request{Messages: []message.Message{message.User("list")}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.Text != "found a.txt" || len(rt.seen) != 2 {
		t.Fatalf("got %q after %d requests", resp.Text, len(rt.seen))
	}

	var second struct {
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type      string `json:"type"`
				ID        string `json:"id"`
				ToolUseID string `json:"tool_use_id"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(rt.seen[1], &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(second.Messages) != 3 {
		t.Fatalf("expected user, tool_use, tool_result; got %+v", second.Messages)
	}
	if second.Messages[1].Content[0].Type != "tool_use" || second.Messages[2].Content[0].ToolUseID != "t1" {
		t.Fatalf("tool pair not adjacent: %+v", second.Messages)
	}
}
