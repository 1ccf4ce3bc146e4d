package main

import (
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [dir]",
	Short: "Export the pipeline graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the pipeline. With --pass, nodes are styled by the outcome of a pass over the documents.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd, args)
		if err != nil {
			return err
		}
		defer app.Close()

		withPass, _ := cmd.Flags().GetBool("pass")
		return app.Graph(cmd.Context(), cmd.OutOrStdout(), withPass)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("pass", false, "Run a pass and overlay its outcome")
}
