package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/five82/tickbox/internal/todo"
)

// ErrNotFound is returned when an id does not exist.
var ErrNotFound = errors.New("todo not found")

// Repository persists todos in SQLite.
type Repository struct {
	db  *sql.DB
	log *log.Logger
}

// OpenDB opens a SQLite database and creates the schema.
func OpenDB(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS todos (
		position   INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		checked    INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// NewRepository wraps an open database.
func NewRepository(db *sql.DB, logger *log.Logger) *Repository {
	return &Repository{db: db, log: logger.With("component", "repository")}
}

// List returns every todo in insertion order.
func (r *Repository) List(ctx context.Context) ([]todo.Entity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, checked FROM todos ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query todos: %w", err)
	}
	defer rows.Close()

	items := []todo.Entity{}
	for rows.Next() {
		var e todo.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Checked); err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todos: %w", err)
	}
	return items, nil
}

// Get returns one todo.
func (r *Repository) Get(ctx context.Context, id string) (todo.Entity, error) {
	var e todo.Entity
	err := r.db.QueryRowContext(ctx, `SELECT id, name, checked FROM todos WHERE id = ?`, id).
		Scan(&e.ID, &e.Name, &e.Checked)
	if errors.Is(err, sql.ErrNoRows) {
		return todo.Entity{}, ErrNotFound
	}
	if err != nil {
		return todo.Entity{}, fmt.Errorf("get todo: %w", err)
	}
	return e, nil
}

// SetChecked stores the checked flag for id. Setting the value it already
// has succeeds.
func (r *Repository) SetChecked(ctx context.Context, id string, checked bool) (todo.Entity, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE todos SET checked = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, checked, id)
	if err != nil {
		return todo.Entity{}, fmt.Errorf("update todo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return todo.Entity{}, ErrNotFound
	}
	r.log.Debug("set checked", "id", id, "checked", checked)
	return r.Get(ctx, id)
}

// Create inserts an unchecked todo with a fresh id.
func (r *Repository) Create(ctx context.Context, name string) (todo.Entity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return todo.Entity{}, fmt.Errorf("name required")
	}
	e := todo.Entity{ID: uuid.New().String(), Name: name}
	if _, err := r.db.ExecContext(ctx, `INSERT INTO todos (id, name) VALUES (?, ?)`, e.ID, e.Name); err != nil {
		return todo.Entity{}, fmt.Errorf("insert todo: %w", err)
	}
	return e, nil
}

// Delete removes a todo.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Seed inserts names when the table is empty. It returns how many rows it added.
func (r *Repository) Seed(ctx context.Context, names []string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM todos`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count todos: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	added := 0
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, err := r.Create(ctx, name); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
