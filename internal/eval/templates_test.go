package eval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codefionn/evalkit/internal/config"
)

func TestDevPrompt(t *testing.T) {
	tpl := DefaultTemplates()
	prompt := tpl.DevPrompt(Task{ID: "T1", Prompt: "Fix bug"})

	assert.True(t, strings.HasPrefix(prompt, "/agent use Developer Agent\n# TASK: T1\n# PROMPT:\nFix bug\n"))
	assert.Contains(t, prompt, "# TASK: T1")
	assert.Contains(t, prompt, "Fix bug")

	stages := []string{"PLAN (", "PATCH (", "TESTS (", "RUN (", "RISKS ("}
	last := -1
	for _, stage := range stages {
		idx := strings.Index(prompt, stage)
		assert.Greater(t, idx, last, stage)
		last = idx
	}
	assert.Contains(t, prompt, "`pytest -q` / `npm test`")
}

func TestDevPromptKeepsPercentSigns(t *testing.T) {
	prompt := DefaultTemplates().DevPrompt(Task{ID: "T1", Prompt: "Raise coverage to 90%s %d"})
	assert.Contains(t, prompt, "Raise coverage to 90%s %d")
}

func TestReviewPrompt(t *testing.T) {
	prompt := DefaultTemplates().ReviewPrompt("T1")

	assert.True(t, strings.HasPrefix(prompt, "/agent use Senior Reviewer Agent\n# REVIEW: T1\n"))
	sections := []string{"ISSUES:", "MISSING_TESTS:", "SECURITY_PERF:", "STYLE_NITS:", "VERDICT:", "IF_BLOCK_MINIMAL_PATCH:"}
	last := -1
	for _, section := range sections {
		idx := strings.Index(prompt, section)
		assert.Greater(t, idx, last, section)
		last = idx
	}
}

func TestChecklist(t *testing.T) {
	tpl := Templates{DevAgent: "d", ReviewAgent: "r", ToolCalls: []string{"shell.run", "other"}}
	checklist := tpl.Checklist("T9")

	assert.True(t, strings.HasPrefix(checklist, "# T9 — Checklist\n"))
	assert.Equal(t, 6, strings.Count(checklist, "- [ ] "))
	assert.Contains(t, checklist, "  \"task_id\": \"T9\",\n")
	assert.Contains(t, checklist, "    \"shell.run\": 0,\n    \"other\": 0\n  },\n")
	assert.True(t, strings.HasSuffix(checklist, "  \"notes\": \"short notes\"\n}\n"))
}

func TestChecklistWithoutToolCalls(t *testing.T) {
	checklist := Templates{}.Checklist("T1")
	assert.Contains(t, checklist, "\"tool_calls\": {},\n")
}

func TestTemplatesAreDeterministic(t *testing.T) {
	a := DefaultTemplates()
	b := NewTemplates(config.DefaultConfig())
	task := Task{ID: "T1", Prompt: "Fix bug"}

	assert.Equal(t, a.DevPrompt(task), b.DevPrompt(task))
	assert.Equal(t, a.ReviewPrompt("T1"), b.ReviewPrompt("T1"))
	assert.Equal(t, a.Checklist("T1"), b.Checklist("T1"))
}

func TestCustomAgentNames(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DevAgent = "Builder"
	cfg.ReviewAgent = "Auditor"
	tpl := NewTemplates(cfg)

	assert.Contains(t, tpl.DevPrompt(Task{ID: "x", Prompt: "y"}), "/agent use Builder\n")
	assert.Contains(t, tpl.ReviewPrompt("x"), "/agent use Auditor\n")
}

func TestReadme(t *testing.T) {
	tpl := DefaultTemplates()

	readme := tpl.Readme("2025-01-02_03-04-05", []string{SummaryLine("T1", "out/s/T1"), SummaryLine("T2", "out/s/T2")})
	assert.True(t, strings.HasPrefix(readme, "# Eval session 2025-01-02_03-04-05\n\n"))
	assert.True(t, strings.HasSuffix(readme, "\n\n- T1 → out/s/T1\n- T2 → out/s/T2\n"))

	empty := tpl.Readme("2025-01-02_03-04-05", nil)
	assert.True(t, strings.HasSuffix(empty, "after each.\n\n\n"))
}

func TestReadmeNamesConfiguredAgents(t *testing.T) {
	tpl := DefaultTemplates()
	tpl.DevAgent = "Builder"
	tpl.ReviewAgent = "Auditor"

	readme := tpl.Readme("2025-01-02_03-04-05", nil)
	assert.Contains(t, readme, "Paste `prompt.txt` into your Builder session,\n")
	assert.Contains(t, readme, "then `review_prompt.txt` into your Auditor session.")
}
