// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"taskr/internal/drafts"
	"taskr/internal/service"
	"taskr/internal/session"
)

// ShortIDLength is how many characters of a task id are shown in listings.
const ShortIDLength = 8

// FormatTask formats a task line for listings. num <= 0 leaves the number
// column blank.
// Format: "{N:>4}  {ID:<8}  {STATUS:<11}  {PRIORITY:<6}  {TITLE}[  (due ...)]\n"
func FormatTask(w io.Writer, num int, task service.Task, now time.Time) {
	col := "    "
	if num > 0 {
		col = fmt.Sprintf("%4d", num)
	}
	line := fmt.Sprintf("%s  %-*s  %-11s  %-6s  %s",
		col, ShortIDLength, ShortID(task.ID), task.Status, task.Priority, normalizeTitle(task.Title))
	if due := dueText(task, now); due != "" {
		line += "  (" + due + ")"
	}
	fmt.Fprintln(w, line)
}

// FormatTaskDetail formats every field of a task, one per line.
func FormatTaskDetail(w io.Writer, task service.Task, now time.Time) {
	fmt.Fprintf(w, "id:          %s\n", task.ID)
	fmt.Fprintf(w, "title:       %s\n", normalizeTitle(task.Title))
	if task.Description != "" {
		fmt.Fprintf(w, "description: %s\n", task.Description)
	}
	fmt.Fprintf(w, "status:      %s\n", task.Status)
	fmt.Fprintf(w, "priority:    %s\n", task.Priority)
	if task.DueDate != nil && !task.DueDate.IsZero() {
		fmt.Fprintf(w, "due:         %s (%s)\n", task.DueDate.Format(time.DateOnly), dueText(task, now))
	}
	if task.EstimatedHours != nil {
		fmt.Fprintf(w, "estimate:    %sh\n", humanize.Ftoa(*task.EstimatedHours))
	}
	if task.CreatedAt != nil && !task.CreatedAt.IsZero() {
		fmt.Fprintf(w, "created:     %s\n", humanize.RelTime(task.CreatedAt.Time, now, "ago", "from now"))
	}
	if task.UpdatedAt != nil && !task.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "updated:     %s\n", humanize.RelTime(task.UpdatedAt.Time, now, "ago", "from now"))
	}
}

// FormatPageFooter formats the pagination summary under a listing.
// Format: "page {P} of {N}, {TOTAL} task(s)\n"
func FormatPageFooter(w io.Writer, page service.TaskPage) {
	pages := page.TotalPages
	if pages < 1 {
		pages = 1
	}
	noun := "tasks"
	if page.Total == 1 {
		noun = "task"
	}
	fmt.Fprintf(w, "page %d of %d, %s %s\n", page.Page, pages, humanize.Comma(int64(page.Total)), noun)
}

// FormatUser formats the signed-in user and, when known, the session expiry.
func FormatUser(w io.Writer, u *session.User, expires time.Time, now time.Time) {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		fmt.Fprintln(w, u.Email)
	} else {
		fmt.Fprintf(w, "%s <%s>\n", name, u.Email)
	}
	if len(u.Roles) > 0 {
		fmt.Fprintf(w, "roles: %s\n", strings.Join(u.Roles, ", "))
	}
	if !expires.IsZero() {
		verb := "expires"
		if !expires.After(now) {
			verb = "expired"
		}
		fmt.Fprintf(w, "session %s %s\n", verb, humanize.RelTime(expires, now, "ago", "from now"))
	}
}

// FormatDraft formats a local draft line.
// Format: "{ID}  {TITLE}: {DESCRIPTION}  ({AGE})\n"
func FormatDraft(w io.Writer, d drafts.Draft, now time.Time) {
	fmt.Fprintf(w, "%d  %s: %s  (%s)\n",
		d.ID, normalizeTitle(d.Title), normalizeTitle(d.Description),
		humanize.RelTime(d.Created(), now, "ago", "from now"))
}

// ShortID truncates id for listings.
func ShortID(id string) string {
	if len(id) <= ShortIDLength {
		return id
	}
	return id[:ShortIDLength]
}

// dueText describes the due date relative to now, or "" when there is none.
func dueText(task service.Task, now time.Time) string {
	if task.DueDate == nil || task.DueDate.IsZero() {
		return ""
	}
	rel := humanize.RelTime(task.DueDate.Time, now, "ago", "from now")
	if task.DueDate.Before(now) && task.Status != service.StatusCompleted && task.Status != service.StatusArchived {
		return "overdue, due " + rel
	}
	return "due " + rel
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
