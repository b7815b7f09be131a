// Package app is the composition root for tickbox.
//
// # Overview
//
// Every entry point loads the TOML configuration, builds a remote.Client for
// the todo service and, where toggles are involved, a coalesce.Coordinator
// on top of it. The CLI in cmd/tickbox maps one subcommand to one function
// here:
//
//   - Run: the interactive TUI
//   - Serve: the demo todo service backed by SQLite
//   - List, Add, Remove: direct calls against the service
//   - Toggle: headless toggles through a coordinator, drained before exit
//   - Logs: tail and filter the TUI log file
//
// # Run
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.Load()         Read config.toml
//	       ├─────> openLogFile()         The terminal belongs to the UI
//	       ├─────> remote.NewClient()    Rate-limited HTTP gateway
//	       ├─────> coalesce.New()        Store, debounce, flush
//	       ├─────> refresh()             Initial Load, failure shown in UI
//	       ├─────> StartRefresher()      Background reloads
//	       ├─────> ui.Run()              Blocks until quit
//	       └─────> Coordinator.Close()   Drain pending toggles
//
// # Refresher
//
// The refresher reloads the collection every refresh interval. A reload
// refused with coalesce.ErrBusy (a flush scheduled or in flight) is skipped
// without counting as a failure. Failed toggles do not block reloads; the
// coordinator carries them over by id. Real failures double the delay up to
// maxBackoff and reset on the next success.
//
// # Shutdown
//
// Quitting the TUI or cancelling ctx stops the refresher. The coordinator
// runs on a context detached from that cancellation, so a flush already on
// the wire completes. Close then flushes whatever is still pending and waits up to drainTimeout for in-flight
// toggles. Toggles that fail during the drain are logged; they are not
// retried.
package app
