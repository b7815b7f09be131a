package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/tickbox/internal/state"
)

// renderMain renders the header, the list, the optional pending panel and
// the footer.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderList())

	if m.showPending {
		b.WriteString("\n")
		b.WriteString(m.renderPendingPanel())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	snap := m.snapshot
	done, _ := snap.Counts()

	parts := []string{
		styles.Logo.Render("tickbox"),
		styles.Text.Render(fmt.Sprintf("%d/%d done", done, len(snap.Items))),
	}
	if n := len(snap.Pending()); n > 0 {
		parts = append(parts, styles.WarningText.Render(fmt.Sprintf("%d pending", n)))
	}
	if n := len(snap.InFlight); n > 0 {
		parts = append(parts, styles.InfoText.Render(fmt.Sprintf("%d saving", n)))
	}
	if n := len(snap.Failures); n > 0 {
		parts = append(parts, styles.DangerText.Render(fmt.Sprintf("%d failed", n)))
	}
	switch {
	case snap.IsOffline():
		parts = append(parts, styles.DangerText.Render("OFFLINE"))
	case snap.LastError != nil:
		parts = append(parts, styles.WarningText.Render("load error"))
	}
	if !snap.LastUpdated.IsZero() {
		parts = append(parts, styles.FaintText.Render("updated "+snap.LastUpdated.Format("15:04:05")))
	}

	return styles.Header.Width(max(m.width, 0)).Render(strings.Join(parts, "  "))
}

func (m Model) renderList() string {
	styles := m.theme.Styles()
	snap := m.snapshot

	if len(snap.Items) == 0 {
		switch {
		case snap.LastError != nil:
			return styles.DangerText.Render("Could not load todos: "+snap.LastError.Error()) + "\n"
		case !snap.Loaded:
			return styles.MutedText.Render("Loading todos...") + "\n"
		default:
			return styles.MutedText.Render("Nothing to do.") + "\n"
		}
	}

	var b strings.Builder
	for i, vm := range snap.Items {
		b.WriteString(m.renderRow(i, vm, styles))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderRow(idx int, vm state.ViewModel, styles Styles) string {
	id := vm.ID()
	box := "[ ]"
	if vm.Effective() {
		box = "[x]"
	}

	marker := " "
	switch {
	case m.snapshot.InFlight[id]:
		marker = m.spinner.View()
	case vm.IsPending():
		marker = styles.WarningText.Render("~")
	case m.snapshot.Failures[id] != "":
		marker = styles.DangerText.Render("!")
	}

	name := vm.Entity().Name
	line := fmt.Sprintf("%s %s", box, name)

	cursor := "  "
	if idx == m.selectedRow {
		cursor = "> "
		return cursor + styles.Selected.Render(line) + " " + marker
	}
	textStyle := styles.Text
	if vm.Effective() {
		textStyle = styles.MutedText
	}
	return cursor + textStyle.Render(line) + " " + marker
}

// renderPendingPanel lists unconfirmed toggles and the last flush outcome.
func (m Model) renderPendingPanel() string {
	styles := m.theme.Styles()
	snap := m.snapshot

	var lines []string
	lines = append(lines, styles.AccentText.Bold(true).Render("Pending"))

	pending := snap.Pending()
	if len(pending) == 0 {
		lines = append(lines, styles.FaintText.Render("no unconfirmed changes"))
	}
	for _, vm := range pending {
		target, _ := vm.Pending().Target()
		phase := "queued"
		if snap.InFlight[vm.ID()] {
			phase = "saving"
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			styles.Text.Render(vm.Entity().Name),
			styles.MutedText.Render("→ "+checkedLabel(target)),
			styles.FaintText.Render("("+phase+")"),
		))
	}
	for _, vm := range snap.Items {
		if reason := snap.Failures[vm.ID()]; reason != "" {
			lines = append(lines, styles.DangerText.Render(fmt.Sprintf("! %s: %s", vm.Entity().Name, reason)))
		}
	}

	if snap.Flushes > 0 {
		lf := snap.LastFlush
		lines = append(lines, "", styles.MutedText.Render(fmt.Sprintf(
			"flush #%d: %d sent, %d confirmed, %d failed in %s",
			lf.Generation, lf.Sent, lf.Confirmed, lf.Failed, lf.Duration.Round(time.Millisecond),
		)))
	}

	width := 0
	if m.width > 4 {
		width = m.width - 4
	}
	return styles.Panel.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	styles := m.theme.Styles()
	if m.statusErr {
		return styles.DangerText.Render(m.status)
	}
	return styles.InfoText.Render(m.status)
}

func checkedLabel(checked bool) string {
	if checked {
		return "done"
	}
	return "open"
}
