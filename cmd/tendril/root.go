package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/tendril/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "tendril",
	Short: "Tendril incrementally indexes a directory of documents",
	Long: `Tendril reads markdown, YAML and JSON documents, and generates a summary per document plus an index.
Passes are incremental: only the documents that changed are processed again.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the documents")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: <dir>/tendril.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logs on stderr")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Do not print pass reports")
	rootCmd.PersistentFlags().StringP("out", "o", "", "Directory receiving the generated files")
}

// openApp builds the app from the persistent flags.
func openApp(cmd *cobra.Command, args []string, appOpts ...cli.AppOption) (*cli.App, error) {
	flags := cmd.Flags()
	opts := cli.Options{Out: cmd.OutOrStdout()}
	opts.Dir, _ = flags.GetString("dir")
	if !flags.Changed("dir") && len(args) > 0 {
		opts.Dir = args[0]
	} else if !flags.Changed("dir") {
		// Let the config file decide.
		opts.Dir = ""
	}
	opts.ConfigPath, _ = flags.GetString("config")
	opts.Debug, _ = flags.GetBool("debug")
	opts.JSONLogs, _ = flags.GetBool("log-json")
	opts.Quiet, _ = flags.GetBool("quiet")
	opts.OutDir, _ = flags.GetString("out")
	return cli.Open(opts, appOpts...)
}
