// Package logtail reads the end of tickbox's log file for `tickbox logs`.
//
// # Reading
//
// Read seeks to the end of the file and walks backwards in fixed-size
// chunks until it has seen more newlines than requested, so only the tail
// of a large log is touched. A limit of zero or less reads the whole file
// with a line scanner instead. Missing files return nil, nil because the
// log is only created once the TUI has run.
//
// # Levels
//
// Level recognizes the four-letter level column written by the
// charmbracelet/log text formatter (DEBU, INFO, WARN, ERRO, FATA). Filter
// drops entries below a minimum level; lines without a level column are
// treated as continuations of the entry above them.
//
// # Colorization
//
// Colorize renders whole lines in a per-level lipgloss color. lipgloss
// detects the output profile, so piping `tickbox logs` into a file yields
// plain text.
package logtail
