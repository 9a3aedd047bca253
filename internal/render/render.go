// Package render formats sessions and reports for the terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"github.com/codefionn/evalkit/internal/eval"
	"github.com/codefionn/evalkit/internal/logger"
	"github.com/codefionn/evalkit/internal/results"
)

const defaultWidth = 80

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	statusStyles = map[eval.Status]lipgloss.Style{
		eval.StatusPending: lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0A0")),
		eval.StatusPass:    lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787")),
		eval.StatusFail:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")),
		eval.StatusPartial: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F")),
	}
	invalidStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Italic(true)
)

// Renderer renders markdown and tables. Markdown is only styled when the
// output is a terminal.
type Renderer struct {
	tty   bool
	width int
}

// New inspects out and picks styling and width accordingly.
func New(out io.Writer) *Renderer {
	r := &Renderer{width: defaultWidth}
	if f, ok := out.(*os.File); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			r.tty = true
			if width, _, err := term.GetSize(fd); err == nil && width > 0 {
				r.width = width
			}
		}
	}
	return r
}

// NewPlain returns a renderer that never styles markdown.
func NewPlain(width int) *Renderer {
	if width <= 0 {
		width = defaultWidth
	}
	return &Renderer{width: width}
}

// Width returns the wrap width.
func (r *Renderer) Width() int {
	return r.width
}

// Markdown renders md with glamour on a terminal and returns it unchanged
// otherwise.
func (r *Renderer) Markdown(md string) string {
	if !r.tty {
		return md
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(r.width),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		logger.Warn("markdown renderer unavailable: %v", err)
		return md
	}

	out, err := renderer.Render(md)
	if err != nil {
		logger.Warn("failed to render markdown: %v", err)
		return md
	}
	return out
}

// Status styles a status name.
func Status(status eval.Status) string {
	style, ok := statusStyles[status]
	if !ok {
		return invalidStyle.Render(string(status))
	}
	return style.Render(string(status))
}

type column struct {
	title string
	width int
}

var reportColumns = []column{
	{"TASK", 16},
	{"STATUS", 9},
	{"CHECKLIST", 10},
	{"DEV", 8},
	{"REVIEW", 8},
	{"PROMPT", 8},
	{"TOOLS", 6},
}

func cell(text string, width int) string {
	if lipgloss.Width(text) >= width {
		return text + " "
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}

// Report renders a session report as a table followed by totals.
func (r *Renderer) Report(report *results.SessionReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("Session "+report.SessionID), dimStyle.Render(report.Dir))

	for _, col := range reportColumns {
		b.WriteString(cell(headerStyle.Render(col.title), col.width))
	}
	b.WriteString("\n")

	for _, task := range report.Tasks {
		b.WriteString(r.taskRow(task))
	}

	b.WriteString("\n")
	var parts []string
	for _, status := range eval.Statuses {
		parts = append(parts, fmt.Sprintf("%s %d", Status(status), report.Counts[status]))
	}
	if report.Invalid > 0 {
		parts = append(parts, invalidStyle.Render(fmt.Sprintf("invalid %d", report.Invalid)))
	}
	parts = append(parts, fmt.Sprintf("pass rate %.1f%%", report.PassRate*100))
	b.WriteString(strings.Join(parts, " · "))
	b.WriteString("\n")
	fmt.Fprintf(&b, "tokens: dev %d, review %d\n", report.Tokens.Dev, report.Tokens.Review)

	return b.String()
}

func (r *Renderer) taskRow(task *results.TaskReport) string {
	var b strings.Builder

	id := task.TaskID
	if task.PromptModified {
		id += "*"
	}

	status := Status(task.Status)
	if task.Error != "" {
		status = invalidStyle.Render("invalid")
	}

	values := []string{
		id,
		status,
		fmt.Sprintf("%d/%d", task.ChecklistDone, task.ChecklistTotal),
		fmt.Sprintf("%d", task.Tokens.Dev),
		fmt.Sprintf("%d", task.Tokens.Review),
		fmt.Sprintf("%d", task.PromptTokens),
		fmt.Sprintf("%d", task.ToolCalls.Total()),
	}
	for i, v := range values {
		b.WriteString(cell(v, reportColumns[i].width))
	}
	b.WriteString("\n")

	if text := task.Notes; text != "" {
		b.WriteString(r.wrapIndented(text))
	}
	if task.Error != "" {
		b.WriteString(r.wrapIndented(invalidStyle.Render(task.Error)))
	}
	return b.String()
}

func (r *Renderer) wrapIndented(text string) string {
	width := r.width - 4
	if width < 20 {
		width = 20
	}
	return indent.String(wordwrap.String(text, width), 4) + "\n"
}

// Sessions renders a session list, newest first.
func (r *Renderer) Sessions(sessions []*eval.SessionRecord) string {
	if len(sessions) == 0 {
		return dimStyle.Render("no sessions") + "\n"
	}

	var b strings.Builder
	b.WriteString(cell(headerStyle.Render("SESSION"), 22))
	b.WriteString(cell(headerStyle.Render("TASKS"), 7))
	b.WriteString(headerStyle.Render("DIRECTORY"))
	b.WriteString("\n")

	for _, s := range sessions {
		count := "-"
		if s.UUID != "" {
			count = fmt.Sprintf("%d", s.TaskCount)
		}
		b.WriteString(cell(s.ID, 22))
		b.WriteString(cell(count, 7))
		b.WriteString(s.Dir)
		b.WriteString("\n")
	}
	return b.String()
}

// Task renders the detail view of one task: its checklist and result.
func (r *Renderer) Task(task *results.TaskReport, checklist string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("Task "+task.TaskID), dimStyle.Render(task.Dir))
	if task.Error != "" {
		b.WriteString(r.wrapIndented(invalidStyle.Render(task.Error)))
	} else {
		fmt.Fprintf(&b, "status %s · checklist %d/%d · tokens dev %d review %d\n",
			Status(task.Status), task.ChecklistDone, task.ChecklistTotal, task.Tokens.Dev, task.Tokens.Review)
		for _, tc := range task.ToolCalls {
			fmt.Fprintf(&b, "  %s: %d\n", tc.Name, tc.Count)
		}
		if task.Notes != "" {
			b.WriteString(r.wrapIndented(task.Notes))
		}
	}
	if task.PromptModified {
		b.WriteString(dimStyle.Render("prompt.txt changed since materialization") + "\n")
	}
	if checklist != "" {
		b.WriteString("\n")
		b.WriteString(r.Markdown(checklist))
	}
	return b.String()
}
