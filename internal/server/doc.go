// Package server implements the demo todo service that tickbox talks to.
//
// Todos live in SQLite (modernc.org/sqlite, no cgo) and are served with a
// chi router:
//
//	GET    /healthz
//	GET    /api/todos          list in creation order
//	POST   /api/todos          {"name": "..."} -> 201 with the new todo
//	PATCH  /api/todos/{id}     {"checked": true} -> 200, 404 if unknown
//	DELETE /api/todos/{id}     204, 404 if unknown
//
// PATCH sets an absolute value, so repeating it is harmless. Mutations can
// be slowed with Options.Latency and made to fail with Options.FailRate
// (503 Service Unavailable) to exercise the client's optimistic paths.
package server
