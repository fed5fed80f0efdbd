// Package dynamo provides the shared primitives of the fluid simulator.
//
// The package defines the types that flow between the solver and its
// consumers:
//
//   - [Color]: per-particle debug color written by a step
//   - [Frame]: read-only view of solver state after a step
//   - [Observer] and [Metric]: per-frame hooks
//   - [StageTimer]: optional instrumentation callback
//   - [ParallelFor]: chunked data-parallel loop with an implicit barrier
//
// # Errors
//
// Construction failures wrap [ErrInvalidConfig] in a [ConfigError];
// buffers of the wrong length return [ErrShapeMismatch]. Numerical trouble
// is never reported by the solver itself; run loops detect it with
// [ValidPositions] and report [SimError].
//
// # Thread Safety
//
// A solver has exactly one writer. Observers run synchronously on the
// stepping goroutine and must not retain the slices of a [Frame].
package dynamo
