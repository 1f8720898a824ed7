package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "callpipe",
		Short: "Run method calls through a configurable behavior pipeline",
		Long: `callpipe routes method calls through a chain of behaviors (logging, tracing,
metrics, recording, throttling, retries, webhooks) before they reach the target.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file (default ./callpipe.yaml when present)")
	pf.StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before the config, ignored when missing")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newCallCmd(flags))
	root.AddCommand(newInvocationsCmd(flags))
	return root
}
