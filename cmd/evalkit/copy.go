package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.design/x/clipboard"

	"github.com/codefionn/evalkit/internal/consts"
)

var copyReview bool

// copyCmd puts a task prompt on the system clipboard so it can be pasted
// into an agent session.
var copyCmd = &cobra.Command{
	Use:   "copy <session> <task>",
	Short: "Copy a task prompt to the clipboard",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		dir, err := svc.TaskDir(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		name := consts.DevPromptFile
		if copyReview {
			name = consts.ReviewPromptFile
		}
		path := filepath.Join(dir, name)
		data, err := svc.FS().ReadFile(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		if err := clipboard.Init(); err != nil {
			return fmt.Errorf("clipboard unavailable: %w", err)
		}
		clipboard.Write(clipboard.FmtText, data)

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("Copied"), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(copyCmd)
	copyCmd.Flags().BoolVar(&copyReview, "review", false, "Copy the review prompt instead of the developer prompt")
}
