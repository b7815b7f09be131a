package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/tickbox/internal/coalesce"
	"github.com/five82/tickbox/internal/prefs"
	"github.com/five82/tickbox/internal/state"
	"github.com/five82/tickbox/internal/todo"
)

// fakeController keeps a real store so pending and effective values behave
// exactly as they do behind the coordinator.
type fakeController struct {
	mu        sync.Mutex
	store     *state.Store
	toggleErr error
	loadErr   error
	flushes   int
	loads     int
	changes   chan struct{}
}

func newFakeController(entities ...todo.Entity) *fakeController {
	return &fakeController{store: state.NewStore(entities), changes: make(chan struct{}, 1)}
}

func (f *fakeController) Snapshot() state.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return state.Snapshot{Items: f.store.Items(), Loaded: true}
}

func (f *fakeController) Toggle(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toggleErr != nil {
		return f.toggleErr
	}
	if _, ok := f.store.Toggle(id); !ok {
		return fmt.Errorf("toggle %s: %w", id, coalesce.ErrUnknownID)
	}
	return nil
}

func (f *fakeController) Flush(context.Context) coalesce.FlushReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	var results []coalesce.Result
	for _, vm := range f.store.Pending() {
		target, _ := vm.Pending().Target()
		f.store.Confirm(vm.ID())
		results = append(results, coalesce.Result{ID: vm.ID(), Target: target})
	}
	return coalesce.FlushReport{Generation: uint64(f.flushes), Results: results}
}

func (f *fakeController) Load(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.loadErr
}

func (f *fakeController) Changes() <-chan struct{} { return f.changes }

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func newTestModel(t *testing.T, ctrl *fakeController) Model {
	t.Helper()
	m := New(Options{
		Controller: ctrl,
		ThemeName:  "Nightfox",
		PrefsPath:  filepath.Join(t.TempDir(), "prefs.toml"),
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model)
}

func send(m Model, msg tea.Msg) (Model, tea.Cmd) {
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func sampleController() *fakeController {
	return newFakeController(
		todo.Entity{ID: "a", Name: "Buy milk"},
		todo.Entity{ID: "b", Name: "Walk dog", Checked: true},
		todo.Entity{ID: "c", Name: "Call mum"},
	)
}

func TestView_RendersEffectiveValues(t *testing.T) {
	m := newTestModel(t, sampleController())

	view := m.View()
	for _, want := range []string{"tickbox", "1/3 done", "[ ] Buy milk", "[x] Walk dog", "[ ] Call mum"} {
		if !strings.Contains(view, want) {
			t.Fatalf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestToggleKey_ShowsOptimisticValueImmediately(t *testing.T) {
	ctrl := sampleController()
	m := newTestModel(t, ctrl)

	m, _ = send(m, tea.KeyMsg{Type: tea.KeySpace})

	view := m.View()
	if !strings.Contains(view, "[x] Buy milk") {
		t.Fatalf("View() after toggle missing checked row:\n%s", view)
	}
	if !strings.Contains(view, "1 pending") {
		t.Fatalf("View() after toggle missing pending count:\n%s", view)
	}

	// A second toggle cancels the first.
	m, _ = send(m, runeKey('x'))
	if len(ctrl.Snapshot().Pending()) != 0 {
		t.Fatal("second toggle left the item pending")
	}
	if strings.Contains(m.View(), "1 pending") {
		t.Fatalf("View() still reports pending:\n%s", m.View())
	}
}

func TestNavigation_MovesSelectionAndClamps(t *testing.T) {
	ctrl := sampleController()
	m := newTestModel(t, ctrl)

	m, _ = send(m, runeKey('j'))
	m, _ = send(m, runeKey('j'))
	m, _ = send(m, runeKey('j'))
	if m.selectedRow != 2 {
		t.Fatalf("selectedRow = %d, want 2", m.selectedRow)
	}
	m, _ = send(m, runeKey('g'))
	if m.selectedRow != 0 {
		t.Fatalf("selectedRow after g = %d, want 0", m.selectedRow)
	}
	m, _ = send(m, runeKey('G'))
	m, _ = send(m, tea.KeyMsg{Type: tea.KeySpace})

	vm, _ := ctrl.store.Get("c")
	if !vm.IsPending() {
		t.Fatal("toggle on the last row did not reach item c")
	}
}

func TestToggleError_IsShownAsStatus(t *testing.T) {
	ctrl := sampleController()
	ctrl.toggleErr = fmt.Errorf("toggle a: %w", coalesce.ErrInFlight)
	m := newTestModel(t, ctrl)

	m, _ = send(m, tea.KeyMsg{Type: tea.KeySpace})
	if !m.statusErr || !strings.Contains(m.View(), "being saved") {
		t.Fatalf("status = %q (err=%v), want in-flight message", m.status, m.statusErr)
	}
}

func TestFlushKey_RunsFlushAndReports(t *testing.T) {
	ctrl := sampleController()
	m := newTestModel(t, ctrl)

	m, _ = send(m, tea.KeyMsg{Type: tea.KeySpace})
	m, cmd := send(m, runeKey('f'))
	if cmd == nil {
		t.Fatal("flush key returned no command")
	}
	m, _ = send(m, cmd())

	if ctrl.flushes != 1 {
		t.Fatalf("flushes = %d, want 1", ctrl.flushes)
	}
	if !strings.Contains(m.status, "flushed 1") {
		t.Fatalf("status = %q, want flush summary", m.status)
	}
	vm, _ := ctrl.store.Get("a")
	if !vm.Entity().Checked || vm.IsPending() {
		t.Fatalf("item a = %#v, want confirmed checked", vm.Entity())
	}
}

func TestReloadKey_ReportsBusy(t *testing.T) {
	ctrl := sampleController()
	ctrl.loadErr = coalesce.ErrBusy
	m := newTestModel(t, ctrl)

	m, cmd := send(m, runeKey('r'))
	m, _ = send(m, cmd())
	if ctrl.loads != 1 {
		t.Fatalf("loads = %d, want 1", ctrl.loads)
	}
	if m.statusErr || !strings.Contains(m.status, "pending") {
		t.Fatalf("status = %q (err=%v), want busy skip notice", m.status, m.statusErr)
	}

	ctrl.loadErr = errors.New("boom")
	m, cmd = send(m, runeKey('r'))
	m, _ = send(m, cmd())
	if !m.statusErr {
		t.Fatalf("status = %q, want error", m.status)
	}
}

func TestPendingPanelAndTheme_ArePersisted(t *testing.T) {
	ctrl := sampleController()
	m := newTestModel(t, ctrl)

	m, _ = send(m, tea.KeyMsg{Type: tea.KeySpace})
	m, _ = send(m, runeKey('p'))
	view := m.View()
	if !strings.Contains(view, "Pending") || !strings.Contains(view, "→ done") {
		t.Fatalf("View() missing pending panel:\n%s", view)
	}

	m, _ = send(m, runeKey('T'))
	if m.theme.Name != "Kanagawa" {
		t.Fatalf("theme = %q, want Kanagawa", m.theme.Name)
	}

	p, err := prefs.Load(m.prefsPath)
	if err != nil {
		t.Fatalf("prefs.Load returned error: %v", err)
	}
	if p.Theme != "Kanagawa" || !p.ShowPending {
		t.Fatalf("saved prefs = %#v, want Kanagawa with pending panel", p)
	}
}

func TestChangedMsg_RefreshesAndRearms(t *testing.T) {
	ctrl := sampleController()
	m := newTestModel(t, ctrl)

	if err := ctrl.Toggle("b"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	m, cmd := send(m, changedMsg{})
	if cmd == nil {
		t.Fatal("changedMsg did not re-arm the change watcher")
	}
	if !strings.Contains(m.View(), "[ ] Walk dog") {
		t.Fatalf("View() not refreshed after change:\n%s", m.View())
	}
}

func TestQuitKey(t *testing.T) {
	m := newTestModel(t, sampleController())
	_, cmd := send(m, runeKey('q'))
	if cmd == nil {
		t.Fatal("quit key returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("quit key did not produce tea.QuitMsg")
	}
}

func TestThemes(t *testing.T) {
	if len(themeOrder) != len(themes) || themeOrder[0] != "Nightfox" {
		t.Fatalf("themeOrder = %v", themeOrder)
	}
	for _, name := range themeOrder {
		theme := GetTheme(name)
		if theme.Name != name {
			t.Fatalf("GetTheme(%q).Name = %q", name, theme.Name)
		}
		if got := theme.Styles().Panel.GetBackground(); got != lipgloss.Color(theme.Background) {
			t.Fatalf("%s panel background = %v, want %s", name, got, theme.Background)
		}
	}
	if got := NextTheme("Slate"); got != "Nightfox" {
		t.Fatalf("NextTheme(Slate) = %q, want Nightfox", got)
	}
	if got := NextTheme("Unknown"); got != "Nightfox" {
		t.Fatalf("NextTheme(Unknown) = %q, want Nightfox", got)
	}
	if got := GetTheme("missing").Name; got != "Nightfox" {
		t.Fatalf("GetTheme(missing).Name = %q, want Nightfox", got)
	}
}
