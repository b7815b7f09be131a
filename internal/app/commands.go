package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/five82/tickbox/internal/coalesce"
	"github.com/five82/tickbox/internal/logtail"
	"github.com/five82/tickbox/internal/server"
	"github.com/five82/tickbox/internal/state"
	"github.com/five82/tickbox/internal/todo"
)

var (
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#81b29a"))
	openStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#cdcecf"))
	faintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#71839b"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#c94f6d")).Bold(true)
)

// Serve runs the demo todo service until ctx is cancelled.
func Serve(ctx context.Context, opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := NewLogger(opts.stderr(), cfg.LogLevel)
	if err != nil {
		return err
	}

	dbPath := cfg.Server.DBPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := server.OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := server.NewRepository(db, logger)
	added, err := repo.Seed(ctx, cfg.Server.Seed)
	if err != nil {
		return fmt.Errorf("seed todos: %w", err)
	}
	if added > 0 {
		logger.Info("seeded database", "items", added, "path", dbPath)
	}

	srv := server.New(server.Options{
		Bind:     cfg.Server.Bind,
		Latency:  cfg.Server.Latency,
		FailRate: cfg.Server.FailRate,
	}, repo, logger)
	return srv.ListenAndServe(ctx)
}

// List prints every todo, or the raw items as JSON.
func List(ctx context.Context, opts Options, asJSON bool) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	items, err := client.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch todos: %w", err)
	}

	out := opts.stdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(items) == 0 {
		fmt.Fprintln(out, faintStyle.Render("Nothing to do."))
		return nil
	}
	for _, it := range items {
		fmt.Fprintln(out, renderItem(it))
	}
	done, _ := todo.Counts(items)
	fmt.Fprintln(out, faintStyle.Render(fmt.Sprintf("%d/%d done", done, len(items))))
	return nil
}

func renderItem(it todo.Entity) string {
	if it.Checked {
		return doneStyle.Render("[x] "+it.Name) + " " + faintStyle.Render(it.ID)
	}
	return openStyle.Render("[ ] "+it.Name) + " " + faintStyle.Render(it.ID)
}

// Add creates one todo per name.
func Add(ctx context.Context, opts Options, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("add: at least one name required")
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	for _, name := range names {
		created, err := client.Create(ctx, name)
		if err != nil {
			return fmt.Errorf("add %q: %w", name, err)
		}
		fmt.Fprintf(opts.stdout(), "added %s %s\n", created.ID, created.Name)
	}
	return nil
}

// Remove deletes todos by id or exact name.
func Remove(ctx context.Context, opts Options, refs []string) error {
	if len(refs) == 0 {
		return fmt.Errorf("rm: at least one id or name required")
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	items, err := client.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch todos: %w", err)
	}
	targets, err := resolveRefs(items, refs)
	if err != nil {
		return err
	}
	for _, it := range targets {
		if err := client.Delete(ctx, it.ID); err != nil {
			return fmt.Errorf("rm %s: %w", it.Name, err)
		}
		fmt.Fprintf(opts.stdout(), "removed %s %s\n", it.ID, it.Name)
	}
	return nil
}

// Toggle flips todos by id or exact name through a headless coordinator:
// every toggle is applied, the debounced batch is drained, and each
// result is printed. Naming the same item twice cancels out.
func Toggle(ctx context.Context, opts Options, refs []string) error {
	if len(refs) == 0 {
		return fmt.Errorf("toggle: at least one id or name required")
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := NewLogger(opts.stderr(), cfg.LogLevel)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		reports []coalesce.FlushReport
	)
	coord := newCoordinator(ctx, client, cfg, logger, func(r coalesce.FlushReport) {
		mu.Lock()
		reports = append(reports, r)
		mu.Unlock()
	})
	if err := coord.Load(ctx); err != nil {
		return err
	}

	items := entities(coord.Snapshot())
	targets, err := resolveRefs(items, refs)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(targets))
	for _, it := range targets {
		names[it.ID] = it.Name
		if err := coord.Toggle(it.ID); err != nil {
			return err
		}
	}
	if err := coord.Close(ctx); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	return printReports(opts, reports, names)
}

func printReports(opts Options, reports []coalesce.FlushReport, names map[string]string) error {
	out := opts.stdout()
	sent, failed := 0, 0
	for _, r := range reports {
		for _, res := range r.Results {
			sent++
			label := checkedLabel(res.Target)
			if res.Err != nil {
				failed++
				fmt.Fprintf(out, "%s %s: %v\n", errStyle.Render("fail"), names[res.ID], res.Err)
				continue
			}
			fmt.Fprintf(out, "%s %s -> %s\n", doneStyle.Render("ok"), names[res.ID], label)
		}
	}
	if sent == 0 {
		fmt.Fprintln(out, faintStyle.Render("no changes to send"))
		return nil
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d toggles failed", failed, sent)
	}
	return nil
}

func checkedLabel(checked bool) string {
	if checked {
		return "done"
	}
	return "open"
}

func entities(snap state.Snapshot) []todo.Entity {
	out := make([]todo.Entity, 0, len(snap.Items))
	for _, vm := range snap.Items {
		out = append(out, vm.Entity())
	}
	return out
}

// resolveRefs maps each ref to an item by id, then by case-insensitive name.
func resolveRefs(items []todo.Entity, refs []string) ([]todo.Entity, error) {
	out := make([]todo.Entity, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		found := false
		for _, it := range items {
			if it.ID == ref {
				out = append(out, it)
				found = true
				break
			}
		}
		if !found {
			for _, it := range items {
				if strings.EqualFold(it.Name, ref) {
					out = append(out, it)
					found = true
					break
				}
			}
		}
		if !found {
			return nil, fmt.Errorf("%q: %w", ref, coalesce.ErrUnknownID)
		}
	}
	return out, nil
}

// Logs prints the tail of the TUI log file, optionally filtered by level.
func Logs(opts Options, lines int, level string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	entries, err := logtail.Read(cfg.LogFile, lines)
	if err != nil {
		return err
	}
	if strings.TrimSpace(level) != "" {
		lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			return fmt.Errorf("parse level: %w", err)
		}
		entries = logtail.Filter(entries, lvl)
	}

	out := opts.stdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "no log entries in %s\n", cfg.LogFile)
		return nil
	}
	for _, line := range entries {
		fmt.Fprintln(out, logtail.Colorize(line))
	}
	return nil
}
