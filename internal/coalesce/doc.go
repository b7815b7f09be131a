// Package coalesce implements the optimistic toggle coordinator behind the
// tickbox list.
//
// # Overview
//
// A toggle is applied to the local model the instant it is requested and
// confirmed remotely later, in one batch, once input goes quiet:
//
//	Toggle(id) ──> NextPending ──> Store ──> scheduler.reset()
//	                                              │ quiet window
//	                                              ▼
//	                                 claim ──> snapshot pending set
//	                                              │
//	                          ┌───────────────────┼───────────────────┐
//	                          ▼                   ▼                   ▼
//	                   Gateway.Toggle(a)   Gateway.Toggle(b)   Gateway.Toggle(c)
//	                          │                   │                   │
//	                     reconcile(a)        reconcile(b)        reconcile(c)
//
// # Debounce
//
// The scheduler is global to the coordinator, not per row. Every toggle
// replaces the current generation: the old timer is stopped and a new one
// is armed. When a timer fires it claims its generation under the
// coordinator mutex; a generation superseded after its timer already
// started fails the claim and does nothing.
//
// # Confinement
//
// All store reads and writes, state machine transitions, scheduler moves
// and in-flight bookkeeping happen under one mutex. Gateway calls are the
// only work done outside it; each result re-acquires the mutex to
// reconcile.
//
// # Overlapping Flushes
//
// Cancelling only prevents a flush whose timer has not fired. A toggle that
// arrives while a flush is dispatching arms a new generation, so two cycles
// can run at once. Their batches never share an id:
//
//   - ids with an outstanding call are skipped when a batch is taken
//   - Toggle on such an id returns ErrInFlight and changes nothing
//
// The second rule keeps "pending target == !Checked" true at reconcile time,
// so a success is always exactly one flip.
//
// # Failures
//
// A failed remote toggle leaves the row exactly as it was before the flush
// (still pending, still rendering the requested value) and records the
// error in Snapshot.Failures. There is no retry; the row is sent again by
// the next flush any toggle triggers, or cancelled if the user toggles it
// back.
package coalesce
