package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/tendril/internal/cli"
)

var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Run a single pass",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, args)
		if err != nil {
			return err
		}
		defer app.Close()

		strict, _ := cmd.Flags().GetBool("strict")
		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()
		return app.RunOnce(sigCtx, strict)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("strict", false, "Fail when the pass reports error diagnostics")
}
