// Package tools defines tool contracts and the registry the generation loop
// executes them through.
//
// Includes:
//   - ToolDefinition: name, description, JSON input schema, handler.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - Registry: lookup by name and execution with error capture. Failures
//     come back as {"error": ..., "toolName": ...} results, never as Go errors.
//   - Invariants: results are opaque strings to the caller; a tool call and
//     its result stay adjacent in the transcript.
package tools
