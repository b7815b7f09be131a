package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const chunkSize = 32 * 1024

// Read returns at most maxLines from the end of the file at path; zero or
// less returns every line. A missing file is not an error.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	if maxLines <= 0 {
		return readAll(file)
	}

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat log: %w", err)
	}

	// Walk backwards one chunk at a time until enough newlines were seen.
	var chunks [][]byte
	offset := info.Size()
	newlines := 0
	for offset > 0 && newlines <= maxLines {
		n := min(int64(chunkSize), offset)
		offset -= n
		buf := make([]byte, n)
		if _, err := file.ReadAt(buf, offset); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read log: %w", err)
		}
		newlines += strings.Count(string(buf), "\n")
		chunks = append(chunks, buf)
	}

	var sb strings.Builder
	for i := len(chunks) - 1; i >= 0; i-- {
		sb.Write(chunks[i])
	}
	text := strings.TrimSuffix(sb.String(), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, nil
}

func readAll(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return lines, nil
}

// Level extracts the level from a line written by the text formatter.
// Lines without a level marker (continuations, stack traces) report false.
func Level(line string) (log.Level, bool) {
	for i, field := range strings.Fields(line) {
		if i > 3 {
			break
		}
		switch field {
		case "DEBU":
			return log.DebugLevel, true
		case "INFO":
			return log.InfoLevel, true
		case "WARN":
			return log.WarnLevel, true
		case "ERRO":
			return log.ErrorLevel, true
		case "FATA":
			return log.FatalLevel, true
		}
	}
	return 0, false
}

// Filter keeps lines at or above minLevel. A line without a level follows
// the line before it.
func Filter(lines []string, minLevel log.Level) []string {
	out := make([]string, 0, len(lines))
	keep := true
	for _, line := range lines {
		if lvl, ok := Level(line); ok {
			keep = lvl >= minLevel
		}
		if keep {
			out = append(out, line)
		}
	}
	return out
}

var levelStyles = map[log.Level]lipgloss.Style{
	log.DebugLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
	log.InfoLevel:  lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F")),
	log.WarnLevel:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")),
	log.ErrorLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
	log.FatalLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
}

// Colorize renders a line with its level color for terminal output. Lines
// without a level are returned unchanged.
func Colorize(line string) string {
	lvl, ok := Level(line)
	if !ok {
		return line
	}
	return levelStyles[lvl].Render(line)
}
