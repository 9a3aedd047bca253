package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codefionn/evalkit/internal/config"
	"github.com/codefionn/evalkit/internal/consts"
	"github.com/codefionn/evalkit/internal/eval"
	"github.com/codefionn/evalkit/internal/fs"
	"github.com/codefionn/evalkit/internal/logger"
)

var (
	configFile string
	tasksFlag  string
	outFlag    string
	logLevel   string

	// now is replaced in tests.
	now = time.Now
)

// rootCmd materializes a session when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "evalkit",
	Short: "Scaffold evaluation sessions for a developer/reviewer agent pair",
	Long: `evalkit reads a task list and writes, for every task, a developer prompt,
a review prompt, a checklist and a pending result record into a new
timestamped session directory.

Without a subcommand it materializes the configured task file. The other
commands inspect and update sessions afterwards.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMaterialize,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (JSON, defaults to "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&tasksFlag, "tasks", "", "Task file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&outFlag, "out", "", "Output root for sessions")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error, none)")
}

// loadConfig reads the config file, applies flag overrides and initializes
// the global logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		path = config.GetConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("tasks") {
		cfg.TasksPath = tasksFlag
	}
	if flags.Changed("out") {
		cfg.OutputRoot = outFlag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Debug("config loaded from %s", path)
	return cfg, nil
}

// newService loads the config and opens the service for it.
func newService(cmd *cobra.Command) (*eval.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return eval.NewService(cfg, fs.NewOSFS(consts.FilePerm)), nil
}

func runMaterialize(cmd *cobra.Command, args []string) error {
	svc, err := newService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	summary, err := svc.Materialize(cmd.Context(), now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Eval session created: %s\n", summary.Session.Dir)
	for _, line := range summary.Lines {
		fmt.Fprintln(out, line)
	}
	return nil
}
