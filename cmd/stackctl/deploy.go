// File: cmd/stackctl/deploy.go
// Brief: deploy, deploy-only, build-only, and infrastructure-only commands.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/stackctl/internal/run"
)

func newDeployCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Build, provision infrastructure, upload content, and verify",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, opts, run.DeployOptions{
				BuildArtifact:  true,
				Infrastructure: true,
				UploadContent:  true,
				RunVerify:      true,
			})
		},
	}
}

func newDeployOnlyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy-only",
		Short: "Upload content and verify against existing infrastructure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, opts, run.DeployOptions{
				UploadContent: true,
				RunVerify:     true,
			})
		},
	}
}

func newBuildOnlyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build-only",
		Short: "Run the artifact build step without touching the cloud",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			r := run.New(env, nil, opts.log)
			return r.Build(cmd.Context())
		},
	}
}

func newInfrastructureOnlyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "infrastructure-only",
		Short: "Apply the environment's stacks in dependency order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildRunner(cmd.Context(), opts)
			if err != nil {
				return err
			}
			results, err := r.Infrastructure(cmd.Context())
			printStackResults(cmd.OutOrStdout(), results)
			return err
		},
	}
}

func runDeploy(cmd *cobra.Command, opts *rootOptions, deployOpts run.DeployOptions) error {
	r, err := buildRunner(cmd.Context(), opts)
	if err != nil {
		return err
	}
	report, err := r.Deploy(cmd.Context(), deployOpts)
	if err != nil {
		return err
	}
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
		if !report.OK {
			return fmt.Errorf("verification failed for environment %s", r.Env.Name)
		}
	}
	return nil
}
