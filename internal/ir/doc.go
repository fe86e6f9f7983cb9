// Package ir holds the declaration graph the propagation engine reads.
//
// The graph is produced by a front end (internal/compiler) that has already
// resolved names, and is read-only from then on: the oracle indexes it, the
// engine derives safety levels from it, and nothing mutates it.
//
// ir imports nothing internal except safety, so every other package may
// depend on it.
//
// Conventions:
//   - Type names are fully qualified ("com.example.Outer.Inner").
//   - Method IDs are "Type#name(ParamType,...)".
//   - Spans are byte offsets into Unit.Source; the zero Span means "unknown".
//   - Annotation arguments are restricted to Value (no floats, no nulls) so
//     they marshal canonically.
package ir
