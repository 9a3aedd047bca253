package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codefionn/evalkit/internal/tools"
)

var planFormat string

// planCmd runs the ECS deployment planning tool locally. Agents reach the
// same tool through the HTTP server.
var planCmd = &cobra.Command{
	Use:   "plan <service> <image>",
	Short: "Plan an ECS service image update",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := tools.NewDefaultRegistry()
		result := registry.Execute(cmd.Context(), &tools.ToolCall{
			ID:   "cli",
			Name: tools.ToolNameECSPlan,
			Parameters: map[string]interface{}{
				"service":         args[0],
				"image":           args[1],
				"response_format": planFormat,
			},
		})
		if result.Error != "" {
			return fmt.Errorf("%s: %s", tools.ToolNameECSPlan, result.Error)
		}

		data, err := json.MarshalIndent(result.Result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringVar(&planFormat, "format", tools.ResponseFormatConcise, "Response format (concise or detailed)")
}
