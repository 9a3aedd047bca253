package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codefionn/evalkit/internal/eval"
	"github.com/codefionn/evalkit/internal/render"
	"github.com/codefionn/evalkit/internal/results"
)

var (
	markNotes        string
	markDevTokens    int
	markReviewTokens int
	markTools        []string
)

// markCmd records the outcome of a task in its result.json.
var markCmd = &cobra.Command{
	Use:   "mark <session> <task> [status]",
	Short: "Update the result record of a task",
	Long: `Update status, notes, token estimates or tool call counts in a task's
result.json. Keys not mentioned are left untouched. A status can move from
pending to pass, fail or partial and between those three; it never goes back
to pending.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		update, err := buildUpdate(cmd, argOr(args, 2, ""))
		if err != nil {
			return err
		}
		if update.Empty() {
			return fmt.Errorf("nothing to update: pass a status or one of --notes, --dev-tokens, --review-tokens, --tool")
		}

		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		dir, err := svc.TaskDir(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		record, err := results.Mark(cmd.Context(), svc.FS(), dir, update)
		if err != nil {
			return err
		}

		if svc.Index() != nil {
			if _, err := svc.SyncStatuses(cmd.Context(), args[0]); err != nil {
				color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "warning: index not updated: %v\n", err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", record.TaskID, render.Status(record.Status))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(markCmd)
	markCmd.Flags().StringVar(&markNotes, "notes", "", "Replace the notes")
	markCmd.Flags().IntVar(&markDevTokens, "dev-tokens", 0, "Developer agent token estimate")
	markCmd.Flags().IntVar(&markReviewTokens, "review-tokens", 0, "Reviewer agent token estimate")
	markCmd.Flags().StringArrayVar(&markTools, "tool", nil, "Tool call count as name=n (repeatable)")
}

func buildUpdate(cmd *cobra.Command, status string) (results.Update, error) {
	var u results.Update

	if status != "" {
		parsed, err := eval.ParseStatus(status)
		if err != nil {
			return u, err
		}
		u.Status = parsed
	}

	flags := cmd.Flags()
	if flags.Changed("notes") {
		notes := markNotes
		u.Notes = &notes
	}
	if flags.Changed("dev-tokens") {
		n := markDevTokens
		u.DevTokens = &n
	}
	if flags.Changed("review-tokens") {
		n := markReviewTokens
		u.ReviewTokens = &n
	}
	if flags.Changed("tool") {
		calls, err := parseToolCounts(markTools)
		if err != nil {
			return u, err
		}
		u.ToolCalls = calls
	}
	return u, nil
}

// parseToolCounts parses name=n pairs.
func parseToolCounts(pairs []string) ([]eval.ToolCallCount, error) {
	calls := make([]eval.ToolCallCount, 0, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --tool %q: want name=n", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid --tool %q: count must be a non-negative integer", pair)
		}
		calls = append(calls, eval.ToolCallCount{Name: name, Count: n})
	}
	return calls, nil
}
