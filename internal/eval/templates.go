package eval

import (
	"fmt"
	"strings"

	"github.com/codefionn/evalkit/internal/config"
)

const devPromptFormat = `/agent use %s
# TASK: %s
# PROMPT:
%s

# FOLLOW THIS SHAPE:
PLAN (bullets; cite official docs if infra/API/IaC/auth) ->
PATCH (small targeted hunks only) ->
TESTS (list added/updated tests) ->
RUN (exact commands e.g. ` + "`pytest -q` / `npm test`" + `) ->
RISKS (edge cases, follow-ups)
`

const reviewPromptFormat = `/agent use %s
# REVIEW: %s

Please audit the most recent diff using this structure:
ISSUES:
- [severity: high|med|low] file:line — one-line problem + fix hint
MISSING_TESTS:
- path::test_name — scenario to cover
SECURITY_PERF:
- bullets
STYLE_NITS:
- bullets (optional)
VERDICT:
- APPROVE | BLOCK — reason
IF_BLOCK_MINIMAL_PATCH:
- tiny diff or checklist for high/med items

If infra/API/IaC/auth changed, search official docs first and reconcile.
`

const checklistHeadFormat = "# %s — Checklist\n\n" +
	"- [ ] **Doc-first**: If infra/API/IaC/auth touched, use `ref.search_documentation`\n" +
	"      and paste URL + 2–3 bullets (official docs only).\n" +
	"- [ ] **Small diffs** only; no whole-file dumps. Use `git.diff` & line reads.\n" +
	"- [ ] **Tests added/updated** and **run locally** (`pytest -q` / `npm test`).\n" +
	"- [ ] **Tool responses** default to `\"concise\"`; request `\"detailed\"` only when IDs are needed.\n" +
	"- [ ] Reviewer returns **APPROVE/BLOCK** with minimal patch if BLOCK.\n" +
	"- [ ] Log outcome in `result.json`.\n" +
	"\n" +
	"## Quick logging template\n" +
	"Create `result.json` with something like:\n"

const readmeFormat = "# Eval session %s\n\n" +
	"Folders created for each task. Paste `prompt.txt` into your %s session,\n" +
	"then `review_prompt.txt` into your %s session. Update `result.json` after each.\n\n"

// Templates renders the fixed artifact bodies. It is a plain value; every
// method is a pure function of its fields and arguments.
type Templates struct {
	DevAgent    string
	ReviewAgent string
	ToolCalls   []string
}

// NewTemplates takes agent names and counters from cfg.
func NewTemplates(cfg *config.Config) Templates {
	return Templates{
		DevAgent:    cfg.DevAgent,
		ReviewAgent: cfg.ReviewAgent,
		ToolCalls:   append([]string(nil), cfg.ToolCalls...),
	}
}

// DefaultTemplates uses the built-in agent names and counters.
func DefaultTemplates() Templates {
	return NewTemplates(config.DefaultConfig())
}

// DevPrompt is the text pasted into the developer agent.
func (t Templates) DevPrompt(task Task) string {
	return fmt.Sprintf(devPromptFormat, t.DevAgent, task.ID, task.Prompt)
}

// ReviewPrompt is the text pasted into the reviewer agent.
func (t Templates) ReviewPrompt(taskID string) string {
	return fmt.Sprintf(reviewPromptFormat, t.ReviewAgent, taskID)
}

// Checklist is the acceptance checklist, ending with an example result
// record. The example is documentation and is never parsed back.
func (t Templates) Checklist(taskID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, checklistHeadFormat, taskID)
	b.WriteString("{\n")
	fmt.Fprintf(&b, "  \"task_id\": %q,\n", taskID)
	b.WriteString("  \"status\": \"pass | fail | partial\",\n")
	b.WriteString("  \"tokens_estimate\": {\n    \"dev\": 0,\n    \"review\": 0\n  },\n")
	if len(t.ToolCalls) == 0 {
		b.WriteString("  \"tool_calls\": {},\n")
	} else {
		b.WriteString("  \"tool_calls\": {\n")
		for i, name := range t.ToolCalls {
			sep := ","
			if i == len(t.ToolCalls)-1 {
				sep = ""
			}
			fmt.Fprintf(&b, "    %q: 0%s\n", name, sep)
		}
		b.WriteString("  },\n")
	}
	b.WriteString("  \"notes\": \"short notes\"\n}\n")
	return b.String()
}

// PendingResult is the initial result record for taskID.
func (t Templates) PendingResult(taskID string) ResultRecord {
	return NewPendingResult(taskID, t.ToolCalls)
}

// Readme renders the session summary. lines are emitted in the given order.
func (t Templates) Readme(sessionID string, lines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, readmeFormat, sessionID, t.DevAgent, t.ReviewAgent)
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")
	return b.String()
}

// SummaryLine is the per-task line used in _README.md and on stdout.
func SummaryLine(taskID, dir string) string {
	return fmt.Sprintf("- %s → %s", taskID, dir)
}
