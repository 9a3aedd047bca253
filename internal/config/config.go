package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const appName = "evalkit"

// Default agent names substituted into the generated prompts.
const (
	DefaultDevAgent    = "Developer Agent"
	DefaultReviewAgent = "Senior Reviewer Agent"
)

// DefaultToolCalls lists the counters every result record starts with, in
// the order they are written.
var DefaultToolCalls = []string{"ref.search_documentation", "shell.run", "other"}

// Config represents application configuration
type Config struct {
	TasksPath     string   `json:"tasks_path"`
	OutputRoot    string   `json:"output_root"`
	DevAgent      string   `json:"dev_agent"`
	ReviewAgent   string   `json:"review_agent"`
	ToolCalls     []string `json:"tool_calls"`
	LogLevel      string   `json:"log_level"` // debug, info, warn, error, none
	ServerAddr    string   `json:"server_addr"`
	TokenEncoding string   `json:"token_encoding"`
	DisableIndex  bool     `json:"disable_index,omitempty"`

	LogPath   string `json:"-"`
	IndexPath string `json:"-"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", appName)
	default:
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", appName)
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", appName)
	default:
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", appName)
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	stateDir := defaultStateDir()

	return &Config{
		TasksPath:     filepath.Join("eval", "tasks.yaml"),
		OutputRoot:    filepath.Join("eval", "out"),
		DevAgent:      DefaultDevAgent,
		ReviewAgent:   DefaultReviewAgent,
		ToolCalls:     append([]string(nil), DefaultToolCalls...),
		LogLevel:      "info",
		ServerAddr:    "localhost:8937",
		TokenEncoding: "cl100k_base",
		LogPath:       filepath.Join(stateDir, appName+".log"),
		IndexPath:     filepath.Join(stateDir, "index.db"),
	}
}

// Load loads configuration from file. A missing file yields the defaults;
// fields present in the file override them.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults refills fields that a config file explicitly blanked.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.TasksPath == "" {
		c.TasksPath = defaults.TasksPath
	}
	if c.OutputRoot == "" {
		c.OutputRoot = defaults.OutputRoot
	}
	if c.DevAgent == "" {
		c.DevAgent = defaults.DevAgent
	}
	if c.ReviewAgent == "" {
		c.ReviewAgent = defaults.ReviewAgent
	}
	if len(c.ToolCalls) == 0 {
		c.ToolCalls = defaults.ToolCalls
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.ServerAddr == "" {
		c.ServerAddr = defaults.ServerAddr
	}
	if c.TokenEncoding == "" {
		c.TokenEncoding = defaults.TokenEncoding
	}
	if c.LogPath == "" {
		c.LogPath = defaults.LogPath
	}
	if c.IndexPath == "" {
		c.IndexPath = defaults.IndexPath
	}
}

// Validate checks values that would otherwise produce broken artifacts.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.ToolCalls))
	for i, name := range c.ToolCalls {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("tool_calls[%d] is empty", i)
		}
		if seen[name] {
			return fmt.Errorf("tool_calls contains %q twice", name)
		}
		seen[name] = true
	}
	if strings.ContainsAny(c.DevAgent, "\r\n") || strings.ContainsAny(c.ReviewAgent, "\r\n") {
		return fmt.Errorf("agent names must be single-line")
	}
	return nil
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(data, '\n'), 0644)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}
