// File: cmd/stackctl/verify.go
// Brief: verify command (probe an already-deployed environment).

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [environment]",
		Short: "Run the health probes against a deployed environment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.environment = args[0]
			}
			r, err := buildRunner(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := r.PrimeOutputs(cmd.Context()); err != nil {
				return err
			}
			report, err := r.Verify(cmd.Context())
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			if !report.OK {
				return fmt.Errorf("verification failed for environment %s", r.Env.Name)
			}
			return nil
		},
	}
}
