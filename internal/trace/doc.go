// Package trace records what the borrow checker is doing: driver steps,
// analysis passes, functions and, at the most verbose level, individual
// program points.
//
// # Usage
//
//	borrowck check --trace=- --trace-level=phase prog.toml
//
// # Tracers
//
//   - Nop: tracing disabled, zero overhead
//   - StreamTracer: writes every event immediately (text or NDJSON)
//   - RingTracer: keeps the last N events for post-mortem dumps
//   - MultiTracer: fans out to several tracers
//
// # Levels and scopes
//
// A level admits every scope up to a bound:
//
//	phase  -> ScopeDriver, ScopePass
//	detail -> + ScopeFunc
//	debug  -> + ScopePoint
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, t)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "nll", parentID)
//	defer span.End("")
package trace
