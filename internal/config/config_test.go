package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, filepath.Join("eval", "tasks.yaml"), cfg.TasksPath)
	assert.Equal(t, filepath.Join("eval", "out"), cfg.OutputRoot)
	assert.Equal(t, "Developer Agent", cfg.DevAgent)
	assert.Equal(t, "Senior Reviewer Agent", cfg.ReviewAgent)
	assert.Equal(t, []string{"ref.search_documentation", "shell.run", "other"}, cfg.ToolCalls)
	assert.NotEmpty(t, cfg.LogPath)
	assert.NotEmpty(t, cfg.IndexPath)
	require.NoError(t, cfg.Validate())
}

func TestDefaultConfigDoesNotShareToolCalls(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ToolCalls[0] = "changed"

	assert.Equal(t, "ref.search_documentation", DefaultToolCalls[0])
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().TasksPath, cfg.TasksPath)
}

func TestLoadOverridesProvidedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "output_root": "/tmp/evals",
  "dev_agent": "Builder",
  "tool_calls": ["shell.run"],
  "review_agent": ""
}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/evals", cfg.OutputRoot)
	assert.Equal(t, "Builder", cfg.DevAgent)
	assert.Equal(t, DefaultReviewAgent, cfg.ReviewAgent)
	assert.Equal(t, []string{"shell.run"}, cfg.ToolCalls)
	assert.Equal(t, filepath.Join("eval", "tasks.yaml"), cfg.TasksPath)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"output_root":`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsDuplicateToolCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tool_calls": ["other", "other"]}`), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"other" twice`)
}

func TestValidateRejectsMultilineAgent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DevAgent = "Dev\nAgent"
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.OutputRoot = "runs"
	cfg.ToolCalls = []string{"a", "b"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "runs", loaded.OutputRoot)
	assert.Equal(t, []string{"a", "b"}, loaded.ToolCalls)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if filepath.Separator == '/' && os.Getenv("APPDATA") == "" {
		assert.Equal(t, "/xdg/evalkit/config.json", GetConfigPath())
	}
}
