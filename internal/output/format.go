// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"taskboard/internal/service"
)

const (
	// Separator frames the view title.
	Separator = "------------"

	doneMark    = "[x]"
	pendingMark = "[ ]"
)

// FormatHeader formats the view title section.
func FormatHeader(w io.Writer, title string) {
	fmt.Fprintln(w, Separator)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, Separator)
}

// FormatTask formats one task line.
// Format: "{N:>4}  [x] {TITLE}  (due YYYY-MM-DD, CITY)\n"
func FormatTask(w io.Writer, num int, task service.Task) {
	mark := pendingMark
	if task.Completed {
		mark = doneMark
	}
	fmt.Fprintf(w, "%4d  %s %s%s\n", num, mark, normalizeTitle(task.Title), details(task))
}

// FormatCounts formats the summary line below the task list.
func FormatCounts(w io.Writer, completed, pending, total int) {
	fmt.Fprintf(w, "%d completed, %d pending, %d total\n", completed, pending, total)
}

// FormatNotice formats the last failure message shown to the user.
func FormatNotice(w io.Writer, msg string) {
	if msg == "" {
		return
	}
	fmt.Fprintf(w, "! %s\n", msg)
}

func details(task service.Task) string {
	var parts []string
	if task.DueDate.IsValid() {
		parts = append(parts, "due "+task.DueDate.String())
	}
	if city := strings.TrimSpace(task.City); city != "" {
		parts = append(parts, city)
	}
	if len(parts) == 0 {
		return ""
	}
	return "  (" + strings.Join(parts, ", ") + ")"
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
