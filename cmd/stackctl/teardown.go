// File: cmd/stackctl/teardown.go
// Brief: teardown command (reverse-order stack deletion).

package main

import (
	"github.com/spf13/cobra"
)

func newTeardownCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "teardown <environment>",
		Short: "Delete the environment's stacks in reverse dependency order",
		Long:  "Deletes every stack of the environment in reverse dependency order, waiting for each deletion to finish. Failed deletions are reported at the end but do not stop the remaining stacks from being attempted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.environment = args[0]
			r, err := buildRunner(cmd.Context(), opts)
			if err != nil {
				return err
			}
			results, err := r.Teardown(cmd.Context())
			printStackResults(cmd.OutOrStdout(), results)
			return err
		},
	}
}
