// Package remote provides the HTTP client for the todo service.
//
// Client implements coalesce.Gateway:
//
//   - GET    /api/todos       bulk fetch, {"items":[...]}
//   - PATCH  /api/todos/{id}  set {"checked": target}
//
// plus POST and DELETE for the one-shot CLI commands. Toggle sends the
// target value rather than a "flip" verb, so a repeated request after a
// lost response cannot undo itself.
//
// Every request waits on a golang.org/x/time/rate limiter first. With
// RequestsPerSecond unset the limiter is infinite; when set, a large flush
// is spread out instead of hitting the service all at once. Errors are
// wrapped with the step that failed ("execute request: ...", "decode
// response: ...") and status >= 400 yields a *StatusError matching
// ErrStatus.
package remote
