package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/tendril/internal/cli"
	httpAdapter "github.com/aretw0/tendril/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Watch the documents and serve the latest pass over HTTP",
	Long: `Starts a read-only HTTP API exposing the artifacts, diagnostics and node tables of the latest pass,
Prometheus metrics on /metrics and pass events on /events.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		streams := httpAdapter.NewStreamManager(nil)
		app, err := openApp(cmd, args, cli.WithHooks(streams.Hooks()))
		if err != nil {
			return err
		}
		defer app.Close()

		addr := app.Config.HTTP.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()
		return app.Serve(sigCtx, addr, streams)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
}
