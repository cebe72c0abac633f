// Package agent runs conversational turns against a generation backend while
// keeping a bounded, ordered history of what was said.
//
// Each Agent admits one turn at a time in submission order. A turn redacts
// its context object and resolves its attachments concurrently, composes
// the enriched outbound message, runs the backend (and any tools it calls),
// and only on success appends the raw user input and the reply to memory.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/petasbytes/turnkit/attachment"
	"github.com/petasbytes/turnkit/internal/compose"
	"github.com/petasbytes/turnkit/internal/logger"
	"github.com/petasbytes/turnkit/internal/provider"
	"github.com/petasbytes/turnkit/internal/redact"
	"github.com/petasbytes/turnkit/internal/runner"
	"github.com/petasbytes/turnkit/internal/sequencer"
	"github.com/petasbytes/turnkit/internal/telemetry"
	"github.com/petasbytes/turnkit/internal/weakcache"
	"github.com/petasbytes/turnkit/memory"
	"github.com/petasbytes/turnkit/message"
	"github.com/petasbytes/turnkit/schema"
	"github.com/petasbytes/turnkit/tools"
)

type Config struct {
	// MemoryCapacity bounds remembered messages. Zero selects memory.DefaultCapacity.
	MemoryCapacity int
	// MaxHops bounds backend calls per turn. Zero selects runner.DefaultMaxHops.
	MaxHops int
	// Output fixes a structured reply shape for the lifetime of the agent.
	Output *schema.Node
	Tools  *tools.Registry
	// System is sent ahead of every turn and never stored in memory.
	System string
}

type Agent struct {
	backend provider.Backend
	cfg     Config
	hint    string
	memory  *memory.Store
	runner  *runner.Runner
	queue   sequencer.Queue
	derived weakcache.Cache[schema.Node, Agent]
}

// Result is the outcome of one turn. Structured is set when the agent has an
// output shape.
type Result struct {
	Text       string
	Structured json.RawMessage
}

// Decode unmarshals the structured payload into v.
func (r *Result) Decode(v any) error {
	if r == nil || len(r.Structured) == 0 {
		return errors.New("no structured payload")
	}
	return json.Unmarshal(r.Structured, v)
}

// New validates cfg and returns an agent with empty memory.
func New(backend provider.Backend, cfg Config) (*Agent, error) {
	if backend == nil {
		return nil, invalid("backend", "is required")
	}
	if cfg.MemoryCapacity < 0 {
		return nil, invalid("MemoryCapacity", fmt.Sprintf("must be positive, got %d", cfg.MemoryCapacity))
	}
	if cfg.MaxHops < 0 {
		return nil, invalid("MaxHops", fmt.Sprintf("must be positive, got %d", cfg.MaxHops))
	}
	if cfg.MemoryCapacity == 0 {
		cfg.MemoryCapacity = memory.DefaultCapacity
	}
	if cfg.MaxHops == 0 {
		cfg.MaxHops = runner.DefaultMaxHops
	}
	return &Agent{
		backend: backend,
		cfg:     cfg,
		hint:    compose.Hint(cfg.Output),
		memory:  memory.New(cfg.MemoryCapacity),
		runner:  runner.New(backend, cfg.Tools, cfg.MaxHops),
	}, nil
}

// Config returns the effective configuration.
func (a *Agent) Config() Config { return a.cfg }

// Run executes one turn. Validation failures (see ErrInvalidInput) are
// reported before the turn is queued. Backend failures are returned as-is
// and leave memory unchanged.
func (a *Agent) Run(ctx context.Context, input string, contextObj any, opts *CallOptions) (*Result, error) {
	if err := redact.CheckPlain(contextObj); err != nil {
		return nil, &ValidationError{Field: "context", Err: err}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return sequencer.Run(ctx, &a.queue, func(ctx context.Context) (*Result, error) {
		return a.turn(ctx, input, contextObj, opts)
	})
}

func (a *Agent) turn(ctx context.Context, input string, contextObj any, opts *CallOptions) (*Result, error) {
	ctx, turnID := telemetry.EnsureTurnID(ctx)
	log := logger.FromContext(ctx).With("turn_id", turnID)
	ctx = logger.ContextWithLogger(ctx, log)
	log.Debug("Turn admitted")

	var (
		contextText string
		parts       []message.Part
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		contextText, err = redact.Context(contextObj)
		return err
	})
	if opts != nil && len(opts.Attachments) > 0 {
		g.Go(func() error {
			var err error
			parts, err = attachment.Resolve(gctx, opts.Attachments)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	turn := compose.Compose(a.memory.List(), compose.Input{
		Raw:         input,
		Context:     contextText,
		SchemaHint:  a.hint,
		Attachments: parts,
	})
	msgs := turn.Messages
	if a.cfg.System != "" {
		msgs = append([]message.Message{message.System(a.cfg.System)}, msgs...)
	}
	telemetry.EmitTurnComposed(ctx, telemetry.TurnShape{
		Raw:        input,
		Effective:  turn.Effective,
		Outbound:   msgs[len(msgs)-1].Content,
		Messages:   len(msgs),
		HasContext: contextText != "",
		HasHint:    a.hint != "",
	})

	resp, _, err := a.runner.Run(ctx, runner.Request{
		Messages: msgs,
		Params:   opts.params(),
		Output:   a.cfg.Output,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Text: resp.Text}
	if a.cfg.Output != nil {
		res.Structured = resp.Structured
	}
	reply := resp.Text
	if reply == "" && len(resp.Structured) > 0 {
		reply = string(resp.Structured)
	}
	a.memory.Add(turn.Persist, message.Assistant(reply))
	telemetry.EmitTurnCommitted(ctx, a.memory.Len(), res.Structured != nil)
	log.Debug("Turn committed", "memory_len", a.memory.Len())
	return res, nil
}

// Reset clears memory once every previously submitted turn has finished.
func (a *Agent) Reset() {
	_ = a.queue.Do(context.Background(), func(context.Context) error {
		a.memory.Clear()
		return nil
	})
}

// History returns a snapshot of remembered messages, oldest first.
func (a *Agent) History() []message.Message { return a.memory.List() }

// Derive returns an agent sharing this agent's backend, tools and settings
// but with a fixed output shape and its own memory. Derived agents are
// memoised by the identity of output; the entry goes away once output is
// garbage collected. A nil output returns a itself.
func (a *Agent) Derive(output *schema.Node) *Agent {
	if output == nil {
		return a
	}
	return a.derived.GetOrCreate(output, func() *Agent {
		cfg := a.cfg
		// The derived agent must not keep output reachable.
		shape := *output
		cfg.Output = &shape
		d, err := New(a.backend, cfg)
		if err != nil {
			// cfg was validated when a was built.
			panic(err)
		}
		return d
	})
}
