// Package output provides consistent CLI output formatting.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.Status(icon, msg)
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// KV prints an aligned key/value line for stats-style output.
func (w *Writer) KV(key, value string) {
	_, _ = fmt.Fprintf(w.out, "  %-24s %s\n", key+":", value)
}

// KVf prints an aligned key/value line with a formatted value.
func (w *Writer) KVf(key, format string, args ...any) {
	w.KV(key, fmt.Sprintf(format, args...))
}

// Section prints a section heading.
func (w *Writer) Section(title string) {
	_, _ = fmt.Fprintf(w.out, "\n%s\n", title)
}

// Snippet prints a content excerpt indented under a result line, trimmed
// to a single line.
func (w *Writer) Snippet(content string, maxLen int) {
	line := strings.Join(strings.Fields(content), " ")
	if maxLen > 0 && len(line) > maxLen {
		line = line[:maxLen] + "…"
	}
	if line != "" {
		_, _ = fmt.Fprintf(w.out, "     %s\n", line)
	}
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
