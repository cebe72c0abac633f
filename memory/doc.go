// Package memory provides the bounded short-term conversation store.
//
// Model:
//   - A Store holds at most Cap() records, oldest first.
//   - Add appends; overflow evicts from the front.
//   - List returns an independent copy, so callers cannot reach internal state.
//   - Nothing is persisted outside the process.
package memory
