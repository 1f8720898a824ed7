package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
)

var errNoStorage = errors.New("storage is disabled (storage.type is none)")

func newInvocationsCmd(flags *rootFlags) *cobra.Command {
	var opts struct {
		method string
		limit  int
		asJSON bool
	}

	cmd := &cobra.Command{
		Use:   "invocations [id]",
		Short: "List recorded invocations, or show one by ID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			if a.store == nil {
				return errNoStorage
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				rec, err := a.store.GetInvocation(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(out, rec)
			}

			records, err := a.store.ListInvocations(cmd.Context(), ports.ListOptions{
				Method: opts.method,
				Limit:  opts.limit,
			})
			if err != nil {
				return fmt.Errorf("list invocations: %w", err)
			}
			if opts.asJSON {
				if records == nil {
					records = []*domain.InvocationRecord{}
				}
				return writeJSON(out, records)
			}
			printInvocations(out, records)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.method, "method", "", "only show invocations of this method")
	f.IntVarP(&opts.limit, "limit", "n", ports.DefaultListLimit, "maximum number of invocations")
	f.BoolVar(&opts.asJSON, "json", false, "print records as JSON")
	return cmd
}

func printInvocations(out io.Writer, records []*domain.InvocationRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No invocations recorded.")
		return
	}
	for _, rec := range records {
		fmt.Fprintf(out, "%s  %s  %-20s %-18s %s\n",
			rec.StartedAt.Format("2006-01-02T15:04:05.000Z07:00"),
			rec.ID,
			rec.Method,
			rec.Outcome,
			rec.Duration,
		)
		if rec.Error != "" {
			fmt.Fprintf(out, "    error: %s\n", rec.Error)
		}
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
