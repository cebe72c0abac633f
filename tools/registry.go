package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ErrNotFound is reported for calls to unregistered tools.
var ErrNotFound = errors.New("tool not found")

// Registry holds named tools. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]ToolDefinition
	inputs map[string]*inputValidator
}

// NewRegistry returns a registry holding defs. Later definitions replace
// earlier ones with the same name.
func NewRegistry(defs ...ToolDefinition) *Registry {
	r := &Registry{
		defs:   make(map[string]ToolDefinition, len(defs)),
		inputs: make(map[string]*inputValidator, len(defs)),
	}
	for _, d := range defs {
		r.defs[d.Name] = d
		r.inputs[d.Name] = compileInput(d.InputSchema)
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(def ToolDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return errors.New("tool name is required")
	}
	if def.Function == nil {
		return fmt.Errorf("tool %q: function is required", def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.defs == nil {
		r.defs = make(map[string]ToolDefinition)
		r.inputs = make(map[string]*inputValidator)
	}
	r.defs[def.Name] = def
	r.inputs[def.Name] = compileInput(def.InputSchema)
	return nil
}

func (r *Registry) Lookup(name string) (ToolDefinition, bool) {
	if r == nil {
		return ToolDefinition{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

func (r *Registry) lookup(name string) (ToolDefinition, *inputValidator, bool) {
	if r == nil {
		return ToolDefinition{}, nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, r.inputs[name], ok
}

// Definitions returns every tool sorted by name.
func (r *Registry) Definitions() []ToolDefinition {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDefinition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b ToolDefinition) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Result is the outcome of one tool call.
type Result struct {
	Content string
	IsError bool
	// Err is the underlying failure, for logging only.
	Err error
}

type errorBody struct {
	Error    string `json:"error"`
	ToolName string `json:"toolName"`
}

// Execute runs the named tool. Unknown tools, non-object input, tool errors
// and panics are all captured as error results.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) Result {
	def, v, ok := r.lookup(name)
	if !ok {
		return failure(name, ErrNotFound)
	}
	if err := v.check(input); err != nil {
		return failure(name, err)
	}
	out, err := call(ctx, def, input)
	if err != nil {
		return failure(name, err)
	}
	return Result{Content: out}
}

func call(ctx context.Context, def ToolDefinition, input json.RawMessage) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool panicked: %v", p)
		}
	}()
	return def.Function(ctx, input)
}

func failure(name string, err error) Result {
	b, mErr := json.Marshal(errorBody{Error: err.Error(), ToolName: name})
	if mErr != nil {
		b = []byte(`{"error":"tool error","toolName":""}`)
	}
	return Result{Content: string(b), IsError: true, Err: err}
}
