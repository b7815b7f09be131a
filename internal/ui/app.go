package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/five82/tickbox/internal/coalesce"
	"github.com/five82/tickbox/internal/prefs"
	"github.com/five82/tickbox/internal/state"
)

// Controller is the part of the coordinator the UI drives.
type Controller interface {
	Snapshot() state.Snapshot
	Toggle(id string) error
	Flush(ctx context.Context) coalesce.FlushReport
	Load(ctx context.Context) error
	Changes() <-chan struct{}
}

// Options configures the UI.
type Options struct {
	Context     context.Context
	Controller  Controller
	Logger      *log.Logger
	RefreshTick time.Duration
	ThemeName   string
	ShowPending bool
	PrefsPath   string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx       context.Context
	ctrl      Controller
	log       *log.Logger
	prefsPath string
	tick      time.Duration

	theme       Theme
	keys        keyMap
	help        help.Model
	spinner     spinner.Model
	width       int
	height      int
	ready       bool
	showPending bool

	snapshot    state.Snapshot
	selectedRow int

	status    string
	statusErr bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.RefreshTick
	if tick <= 0 {
		tick = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	theme := GetTheme(opts.ThemeName)
	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	sp.Style = theme.Styles().AccentText

	m := Model{
		ctx:         ctx,
		ctrl:        opts.Controller,
		log:         logger.With("component", "ui"),
		prefsPath:   prefsPath,
		tick:        tick,
		theme:       theme,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		spinner:     sp,
		showPending: opts.ShowPending,
	}
	if m.ctrl != nil {
		m.snapshot = m.ctrl.Snapshot()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tickCmd(m.tick),
		m.spinner.Tick,
	}
	if m.ctrl != nil {
		cmds = append(cmds, waitForChange(m.ctx, m.ctrl.Changes()))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case changedMsg:
		m.refresh()
		return m, waitForChange(m.ctx, m.ctrl.Changes())

	case tickMsg:
		m.refresh()
		return m, tickCmd(m.tick)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case flushDoneMsg:
		m.refresh()
		r := coalesce.FlushReport(msg)
		switch {
		case len(r.Results) == 0:
			m.setStatus("nothing to flush", false)
		case r.Failed() > 0:
			m.setStatus(fmt.Sprintf("flushed %d, %d failed", len(r.Results), r.Failed()), true)
		default:
			m.setStatus(fmt.Sprintf("flushed %d in %s", len(r.Results), r.Duration.Round(time.Millisecond)), false)
		}
		return m, nil

	case loadDoneMsg:
		m.refresh()
		switch {
		case msg.err == nil:
			m.setStatus(fmt.Sprintf("reloaded %d items", len(m.snapshot.Items)), false)
		case errors.Is(msg.err, coalesce.ErrBusy):
			m.setStatus("reload skipped: changes still saving", false)
		default:
			m.setStatus("reload failed: "+msg.err.Error(), true)
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return m.renderMain()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.spinner.Style = m.theme.Styles().AccentText
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Pending):
		m.showPending = !m.showPending
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		m.toggleSelected()
		return m, nil

	case key.Matches(msg, m.keys.Flush):
		return m, flushCmd(m.ctx, m.ctrl)

	case key.Matches(msg, m.keys.Reload):
		return m, loadCmd(m.ctx, m.ctrl)
	}

	count := len(m.snapshot.Items)
	if count == 0 {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.selectedRow < count-1 {
			m.selectedRow++
		}
	case key.Matches(msg, m.keys.Up):
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case key.Matches(msg, m.keys.Top):
		m.selectedRow = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selectedRow = count - 1
	}
	return m, nil
}

func (m *Model) toggleSelected() {
	if m.ctrl == nil || len(m.snapshot.Items) == 0 {
		return
	}
	vm := m.snapshot.Items[m.selectedRow]
	if err := m.ctrl.Toggle(vm.ID()); err != nil {
		switch {
		case errors.Is(err, coalesce.ErrInFlight):
			m.setStatus(vm.Entity().Name+" is being saved, try again in a moment", true)
		default:
			m.setStatus(err.Error(), true)
		}
		return
	}
	m.status = ""
	m.refresh()
}

// refresh re-reads the controller and keeps the cursor on a valid row.
func (m *Model) refresh() {
	if m.ctrl == nil {
		return
	}
	m.snapshot = m.ctrl.Snapshot()
	if n := len(m.snapshot.Items); m.selectedRow >= n {
		m.selectedRow = max(n-1, 0)
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	p := prefs.Prefs{Theme: m.theme.Name, ShowPending: m.showPending}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		m.log.Warn("save prefs failed", "err", err)
	}
}

// Messages

type tickMsg time.Time

type changedMsg struct{}

type flushDoneMsg coalesce.FlushReport

type loadDoneMsg struct{ err error }

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForChange(ctx context.Context, ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ch:
			return changedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func flushCmd(ctx context.Context, ctrl Controller) tea.Cmd {
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		return flushDoneMsg(ctrl.Flush(ctx))
	}
}

func loadCmd(ctx context.Context, ctrl Controller) tea.Cmd {
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		return loadDoneMsg{err: ctrl.Load(ctx)}
	}
}

// Run starts the Bubble Tea program and blocks until the user quits.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
