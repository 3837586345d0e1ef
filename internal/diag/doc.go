// Package diag defines the diagnostic model produced by the borrow checker.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Kind – the closed taxonomy (use of moved value, borrow conflict,
//     dangling reference, non-exhaustive drop order).
//   - Code – stable versioned B-code refining the trigger (see codes.go).
//   - Message – human oriented text naming the place involved.
//   - Primary span and Point – where the violation happens.
//   - Notes – secondary locations ("value moved here", "borrow created here").
//   - Fixes – optional suggestions.
//
// Producers emit through a Reporter; BagReporter accumulates into a Bag that
// supports deterministic sorting and deduplication. Rendering lives in
// internal/diagfmt.
package diag
