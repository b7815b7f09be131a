// Package state holds the optimistic list model rendered by tickbox.
//
// # Overview
//
// Every row on screen is a ViewModel: the confirmed todo.Entity fetched from
// the service plus an optional pending target the user asked for but the
// service has not confirmed yet. The Store keeps those rows in display order
// and addressable by id. Snapshot is the immutable copy handed to the UI.
//
// # Pending Variant
//
// Pending is a tagged variant rather than a *bool:
//
//	Confirmed()                 no local intent, render Entity.Checked
//	Pending{target: !Checked}   local intent, render target
//
// NextPending is the only constructor of the second form, and it collapses
// a target equal to Checked back to Confirmed. So a pending target never
// equals the confirmed flag:
//
//	checked=false  toggle → pending(true)
//	               toggle → confirmed         (two toggles are a no-op)
//	               toggle → pending(true)
//
// Pending-set membership is therefore the parity of toggles since the last
// confirmed value, and reconciling a pending row is always a single flip.
//
// # Concurrency
//
// Store does no locking. The coalesce.Coordinator owns the only Store and
// serializes every read and write behind its mutex; remote calls happen
// outside that lock and rejoin it to reconcile. ViewModel fields are
// unexported, so renderers holding a Snapshot cannot mutate state.
//
// # Snapshot Semantics
//
// Snapshot carries the rows plus coordinator bookkeeping:
//
//   - InFlight: ids whose remote toggle is outstanding
//   - Failures: ids whose last remote toggle failed, with the error text
//   - LastError / ConsecutiveFailures: bulk load health
//   - Flushes / LastFlush: flush cycle counters
//
// Clone deep-copies slices, maps and the error so a snapshot can cross
// goroutines (the Bubble Tea command goroutine to the update loop) safely.
package state
