package telemetry

import (
	"context"

	"github.com/petasbytes/turnkit/internal/metrics"
	"github.com/petasbytes/turnkit/message"
)

// TurnShape summarises a composed turn. It never carries raw text.
type TurnShape struct {
	Raw       string
	Effective string
	// Outbound is the content of the enriched user message.
	Outbound   message.Content
	Messages   int
	HasContext bool
	HasHint    bool
}

// EmitTurnComposed records the size of a composed turn.
func EmitTurnComposed(ctx context.Context, s TurnShape) {
	if !ObserveEnabled() {
		return
	}
	turnID, _ := TurnIDFromContext(ctx)
	raw := metrics.CountFeatures(s.Raw)
	effective := metrics.CountFeatures(s.Effective)
	Emit("turn_composed", map[string]any{
		"turn_id":          turnID,
		"features_version": "2",
		"raw":              raw.Fields(),
		"effective":        effective.Fields(),
		"added":            effective.Sub(raw).Fields(),
		"outbound":         metrics.CountPayload(s.Outbound).Fields(),
		"messages":         s.Messages,
		"has_context":      s.HasContext,
		"has_hint":         s.HasHint,
	})
}

// EmitTurnCommitted records a successful memory commit.
func EmitTurnCommitted(ctx context.Context, memoryLen int, structured bool) {
	turnID, _ := TurnIDFromContext(ctx)
	Emit("turn_committed", map[string]any{
		"turn_id":    turnID,
		"memory_len": memoryLen,
		"structured": structured,
	})
}
