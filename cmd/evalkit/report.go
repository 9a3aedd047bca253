package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codefionn/evalkit/internal/render"
	"github.com/codefionn/evalkit/internal/results"
	"github.com/codefionn/evalkit/internal/tokens"
)

var reportJSON bool

// reportCmd prints the per-task status of a session.
var reportCmd = &cobra.Command{
	Use:   "report [session]",
	Short: "Summarize the results of a session",
	Long:  "Read every result.json and checklist of a session and print a status table. Defaults to the newest session.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		session, err := svc.Session(cmd.Context(), argOr(args, 0, ""))
		if err != nil {
			return err
		}

		estimator := tokens.NewEstimator(svc.Config().TokenEncoding)
		report, err := results.Report(cmd.Context(), svc.FS(), session.Dir, estimator, svc.Digests(session))
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}

		out := cmd.OutOrStdout()
		if reportJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Fprint(out, render.New(out).Report(report))
		if estimator.Approximate() {
			fmt.Fprintln(out, "(prompt token counts are approximate)")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
}

func argOr(args []string, i int, def string) string {
	if i < len(args) {
		return args[i]
	}
	return def
}
