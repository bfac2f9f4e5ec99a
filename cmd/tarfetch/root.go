package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "tarfetch",
		Short:         "Fetch and verify remote package archives",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().String("config", "", "path to a YAML config file")
	root.PersistentFlags().String("cache-root", "", "directory artifacts are imported into")
	root.PersistentFlags().String("staging-dir", "", "directory for in-progress downloads (default <cache-root>/_staging)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().String("log-format", "", "log format: text or json")

	root.AddCommand(newFetchCmd(stdout, stderr))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tarfetch %s (%s)\n", version, commit)
		},
	})

	return root
}
