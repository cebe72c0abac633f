// Package runner drives one generation through a backend and dispatches the
// tool calls it asks for until a final reply arrives.
//
// Invariant:
//   - a tool call and the corresponding tool result are kept adjacent within
//     a turn to preserve execution context and simplify follow-up reasoning.
//   - the tool transcript lives only for the duration of Run; callers decide
//     what, if anything, is remembered.
//
// Flow:
//
//	user(text) -> assistant(tool_call) -> tool(tool_result) -> assistant(text)
package runner
