// File: cmd/stackctl/trust.go
// Brief: trust command (OIDC federation role provisioning).

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/stackctl/internal/federation"
)

func newTrustCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trust [environment]",
		Short: "Create or update the environment's CI federation trust role",
		Long:  "Ensures an IAM role exists that the environment's CI jobs can assume via GitHub's OIDC provider, restricted to the configured repository and branch. Re-running updates the role in place. The OIDC provider itself must already exist.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.environment = args[0]
			}
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			t := env.Trust
			if t.Role == "" {
				return fmt.Errorf("environment %s has no trust settings configured", env.Name)
			}

			// Scoping needs a literal bucket name; output references are
			// not resolvable before the storage stack exists.
			bucket := env.Build.Bucket
			if strings.Contains(bucket, "${") {
				bucket = ""
			}
			policy := ""
			if env.StackPrefix != "" && bucket != "" {
				policy, err = federation.ScopedPolicy(federation.ScopeInputs{
					Region:      env.Region,
					AccountID:   t.AccountID,
					StackPrefix: env.StackPrefix,
					Bucket:      bucket,
				})
				if err != nil {
					return err
				}
			} else {
				opts.log.Warn("stackPrefix or build.bucket not set; provisioning trust role without a permission policy")
			}

			p, err := federation.NewFromRegion(cmd.Context(), env.Region, opts.log)
			if err != nil {
				return err
			}
			roleARN, err := p.EnsureTrust(cmd.Context(), federation.Grant{
				Organization:     t.Organization,
				Repository:       t.Repository,
				BranchPattern:    t.Branch,
				RoleName:         t.Role,
				PermissionPolicy: policy,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Trust role ready: %s\n", roleARN)
			return nil
		},
	}
}
