package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codefionn/evalkit/internal/render"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List materialized sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		list, err := svc.Sessions(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, render.New(out).Sessions(list))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
