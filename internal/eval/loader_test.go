package eval

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTasksYAMLList(t *testing.T) {
	data := []byte(`
- id: T1
  prompt: Fix bug
- id: refactor-auth
  prompt: |
    Split the auth middleware.
    Keep the public API.
`)
	tasks, err := ParseTasks(data, FormatYAML)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, Task{ID: "T1", Prompt: "Fix bug"}, tasks[0])
	assert.Equal(t, "refactor-auth", tasks[1].ID)
	assert.Equal(t, "Split the auth middleware.\nKeep the public API.\n", tasks[1].Prompt)
}

func TestParseTasksYAMLWrapped(t *testing.T) {
	tasks, err := ParseTasks([]byte("tasks:\n  - id: a\n    prompt: b\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, []Task{{ID: "a", Prompt: "b"}}, tasks)
}

func TestParseTasksYAMLNumericID(t *testing.T) {
	tasks, err := ParseTasks([]byte("- id: 42\n  prompt: answer\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "42", tasks[0].ID)
}

func TestParseTasksEmptyList(t *testing.T) {
	tasks, err := ParseTasks([]byte("[]"), FormatYAML)
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)

	tasks, err = ParseTasks([]byte(" [ ] "), FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestParseTasksJSON(t *testing.T) {
	tasks, err := ParseTasks([]byte(`[{"id":"T1","prompt":"Fix bug"}]`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, []Task{{ID: "T1", Prompt: "Fix bug"}}, tasks)

	tasks, err = ParseTasks([]byte(`{"tasks":[{"id":"T2","prompt":"x"}]}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "T2", tasks[0].ID)
}

func TestParseTasksMalformed(t *testing.T) {
	cases := map[string]struct {
		data   string
		format string
	}{
		"yaml syntax":     {"- id: [unclosed", FormatYAML},
		"yaml empty":      {"", FormatYAML},
		"yaml scalar":     {"just text", FormatYAML},
		"yaml no tasks":   {"other: 1", FormatYAML},
		"json syntax":     {`[{"id":`, FormatJSON},
		"json empty":      {"   ", FormatJSON},
		"json scalar":     {`"tasks"`, FormatJSON},
		"json no tasks":   {`{"jobs": []}`, FormatJSON},
		"json wrong type": {`[{"id": {"x": 1}, "prompt": "p"}]`, FormatJSON},
		"unknown format":  {"[]", "toml"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTasks([]byte(tc.data), tc.format)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "expected ParseError, got %v", err)
		})
	}
}

func TestParseTasksValidation(t *testing.T) {
	cases := map[string]struct {
		data  string
		field string
	}{
		"missing id":     {"- prompt: p\n", "id"},
		"empty id":       {"- id: ''\n  prompt: p\n", "id"},
		"missing prompt": {"- id: T1\n", "prompt"},
		"blank prompt":   {"- id: T1\n  prompt: '   '\n", "prompt"},
		"duplicate id":   {"- id: T1\n  prompt: a\n- id: T1\n  prompt: b\n", "id"},
		"path separator": {"- id: a/b\n  prompt: p\n", "id"},
		"parent dir":     {"- id: '..'\n  prompt: p\n", "id"},
		"reserved":       {"- id: _README.md\n  prompt: p\n", "id"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTasks([]byte(tc.data), FormatYAML)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestCheckTaskID(t *testing.T) {
	valid := []string{"T1", "fix-login_2", "v1.2", strings.Repeat("a", 128)}
	for _, id := range valid {
		assert.Empty(t, checkTaskID(id), id)
	}

	invalid := []string{"", ".", "..", ".hidden", "_private", "a b", `a\b`, "a/b", "a:b", "tâche", strings.Repeat("a", 129)}
	for _, id := range invalid {
		assert.NotEmpty(t, checkTaskID(id), id)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := ValidateTasks([]Task{{ID: "ok", Prompt: "p"}, {ID: "", Prompt: "p"}})
	require.Error(t, err)
	assert.Equal(t, "task 1: id is required", err.Error())

	err = ValidateTask(Task{ID: "T1"})
	require.Error(t, err)
	assert.Equal(t, `task ("T1"): prompt is required`, err.Error())
}

func TestLoadTasks(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "tasks.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("- id: T1\n  prompt: Fix bug\n"), 0644))
	tasks, err := LoadTasks(yamlPath)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	jsonPath := filepath.Join(dir, "tasks.JSON")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id":"T1","prompt":"Fix bug"}]`), 0644))
	tasks, err = LoadTasks(jsonPath)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestLoadTasksMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := LoadTasks(path)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, path, pe.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadTasksMalformedFileCarriesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yml")
	require.NoError(t, os.WriteFile(path, []byte("- id: [\n"), 0644))

	_, err := LoadTasks(path)
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, path, pe.Path)
	assert.Contains(t, err.Error(), path)
}
