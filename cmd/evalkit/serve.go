package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codefionn/evalkit/internal/tokens"
	"github.com/codefionn/evalkit/internal/tools"
	"github.com/codefionn/evalkit/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sessions, reports and agent tools over HTTP",
	Long: `Start the HTTP server. It exposes session reports, task artifacts and the
agent tool registry, and pushes result.json changes to websocket clients.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		addr := svc.Config().ServerAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := web.NewServer(svc, tools.NewDefaultRegistry(), tokens.NewEstimator(svc.Config().TokenEncoding), addr)
		fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", svc.Config().OutputRoot, color.CyanString("http://"+addr))
		return server.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to server_addr from the config)")
}
