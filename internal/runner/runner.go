package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/petasbytes/turnkit/internal/logger"
	"github.com/petasbytes/turnkit/internal/provider"
	"github.com/petasbytes/turnkit/internal/telemetry"
	"github.com/petasbytes/turnkit/message"
	"github.com/petasbytes/turnkit/schema"
	"github.com/petasbytes/turnkit/tools"
)

// DefaultMaxHops bounds backend calls per Run when MaxHops is unset.
const DefaultMaxHops = 8

// ErrMaxHops is returned when the backend keeps requesting tools past MaxHops.
var ErrMaxHops = errors.New("runner: maximum hops exceeded")

type Runner struct {
	Backend provider.Backend
	Tools   *tools.Registry
	MaxHops int
}

func New(backend provider.Backend, registry *tools.Registry, maxHops int) *Runner {
	return &Runner{Backend: backend, Tools: registry, MaxHops: maxHops}
}

type Request struct {
	Messages []message.Message
	Params   provider.Params
	Output   *schema.Node
}

// Run sends the conversation, executes requested tools and repeats until the
// backend replies without tool calls. It returns the final response and the
// tool call/result messages exchanged on the way.
func (r *Runner) Run(ctx context.Context, req Request) (*provider.Response, []message.Message, error) {
	if r.Backend == nil {
		return nil, nil, errors.New("runner: no backend")
	}
	maxHops := r.MaxHops
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	ctx, turnID := telemetry.EnsureTurnID(ctx)
	log := logger.FromContext(ctx).With("turn_id", turnID)

	transcript := message.CloneAll(req.Messages)
	var exchanged []message.Message
	defs := r.Tools.Definitions()

	for hop := 1; hop <= maxHops; hop++ {
		resp, err := r.Backend.Generate(ctx, &provider.Request{
			Messages: transcript,
			Tools:    defs,
			Params:   req.Params,
			Output:   req.Output,
		})
		if err != nil {
			log.Error("Generation failed", "hop", hop, "error", err)
			return nil, nil, fmt.Errorf("generate (hop %d): %w", hop, err)
		}
		if len(resp.ToolCalls) == 0 {
			log.Debug("Generation complete", "hops", hop)
			return resp, exchanged, nil
		}

		call := toolCallMessage(resp)
		results := make([]message.Part, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			results = append(results, r.execTool(ctx, tc))
		}
		result := message.Message{Role: message.RoleTool, Content: message.Multi(results...)}

		transcript = append(transcript, call, result)
		exchanged = append(exchanged, call, result)
	}
	log.Warn("Tool loop exceeded max hops", "max_hops", maxHops)
	return nil, nil, fmt.Errorf("%w (%d)", ErrMaxHops, maxHops)
}

func toolCallMessage(resp *provider.Response) message.Message {
	parts := make([]message.Part, 0, len(resp.ToolCalls)+1)
	if resp.Text != "" {
		parts = append(parts, message.TextPart(resp.Text))
	}
	for _, tc := range resp.ToolCalls {
		parts = append(parts, message.Part{
			Type:       message.PartToolCall,
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Input:      tc.Input,
		})
	}
	return message.Message{Role: message.RoleAssistant, Content: message.Multi(parts...)}
}

func (r *Runner) execTool(ctx context.Context, tc provider.ToolCall) message.Part {
	turnID, _ := telemetry.TurnIDFromContext(ctx)

	// Helper to emit a tool_exec event
	emit := func(durationMs int64, inputSize int, outputSize int, errStr string) {
		fields := map[string]any{
			"tool_name":   tc.Name,
			"duration_ms": durationMs,
			"input_size":  inputSize,
			"output_size": outputSize,
			"turn_id":     turnID,
		}
		if errStr != "" {
			fields["error"] = errStr
		} else {
			fields["error"] = nil
		}
		telemetry.Emit("tool_exec", fields)
	}

	start := time.Now()
	input := tc.Input
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	res := r.Tools.Execute(ctx, tc.Name, input)
	elapsed := time.Since(start).Milliseconds()

	part := message.Part{
		Type:       message.PartToolResult,
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Text:       res.Content,
		IsError:    res.IsError,
	}
	if res.IsError {
		// Emit a generic error string to avoid leaking raw payloads in telemetry
		errStr := "tool error"
		if errors.Is(res.Err, tools.ErrNotFound) {
			errStr = "tool not found"
		}
		logger.FromContext(ctx).Warn("Tool failed", "tool", tc.Name, "error", res.Err)
		emit(elapsed, len(input), 0, errStr)
		return part
	}
	emit(elapsed, len(input), len(res.Content), "")
	return part
}
