package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codefionn/evalkit/internal/consts"
	"github.com/codefionn/evalkit/internal/render"
	"github.com/codefionn/evalkit/internal/results"
	"github.com/codefionn/evalkit/internal/tokens"
)

// showCmd renders a session README or a single task.
var showCmd = &cobra.Command{
	Use:   "show [session] [task]",
	Short: "Show a session overview or a task's checklist and result",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		r := render.New(out)

		session, err := svc.Session(ctx, argOr(args, 0, ""))
		if err != nil {
			return err
		}

		if len(args) < 2 {
			readme, err := svc.FS().ReadFile(ctx, filepath.Join(session.Dir, consts.SessionReadme))
			if err != nil {
				return fmt.Errorf("failed to read session overview: %w", err)
			}
			fmt.Fprint(out, r.Markdown(string(readme)))
			return nil
		}

		taskID := args[1]
		dir, err := svc.TaskDir(ctx, session.ID, taskID)
		if err != nil {
			return err
		}

		estimator := tokens.NewEstimator(svc.Config().TokenEncoding)
		task := results.ReportTask(ctx, svc.FS(), dir, taskID, estimator, svc.Digests(session)[taskID])

		checklist, err := svc.FS().ReadFile(ctx, filepath.Join(dir, consts.ChecklistFile))
		if err != nil {
			checklist = nil
		}
		fmt.Fprint(out, r.Task(task, string(checklist)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
