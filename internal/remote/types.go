package remote

import "github.com/five82/tickbox/internal/todo"

// ListResponse mirrors GET /api/todos.
type ListResponse struct {
	Items []todo.Entity `json:"items"`
}

// UpdateRequest is the PATCH /api/todos/{id} body.
type UpdateRequest struct {
	Checked bool `json:"checked"`
}

// CreateRequest is the POST /api/todos body.
type CreateRequest struct {
	Name string `json:"name"`
}

// ErrorResponse is returned by the service alongside 4xx/5xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}
