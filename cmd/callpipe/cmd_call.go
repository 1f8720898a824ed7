package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/callpipe/internal/server"
)

func newCallCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "call <method> [args...]",
		Short: "Run one call through the configured pipeline and print the result",
		Long: `Runs one call against the demo target (Upper, Repeat, Divide) through the
configured pipeline. Arguments that parse as JSON are passed decoded; anything
else is passed as a string.`,
		Example: `  callpipe call Upper hello
  callpipe call Repeat ab 3
  callpipe call Divide 1 4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.proxy.Call(cmd.Context(), args[0], parseArgs(args[1:])...)
			if err != nil {
				return fmt.Errorf("call %s: %w", args[0], err)
			}

			return writeJSON(cmd.OutOrStdout(), server.NewInvokeResponse(result))
		},
	}
}

// parseArgs decodes each argument as JSON, falling back to the raw string.
func parseArgs(raw []string) []any {
	args := make([]any, len(raw))
	for i, s := range raw {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			args[i] = v
		} else {
			args[i] = s
		}
	}
	return args
}
