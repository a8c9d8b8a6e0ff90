// main.go bootstraps stackctl: it builds the root Cobra command and executes
// with a signal-aware context so a Ctrl-C cancels between stack boundaries.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/example/stackctl/internal/logging"
	"github.com/example/stackctl/internal/stack"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	manifest    string
	environment string
	logLevel    string
	region      string

	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "stackctl",
		Short:         "Dependency-ordered CloudFormation deployment orchestrator",
		Long:          "stackctl provisions an environment's CloudFormation stacks in dependency order, wires stack outputs into dependent stacks, verifies the deployment, and tears it down safely.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			viper.SetEnvPrefix("STACKCTL")
			viper.AutomaticEnv()
			for _, name := range []string{"manifest", "environment", "log-level", "region"} {
				if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
					return err
				}
			}
			opts.manifest = viper.GetString("manifest")
			opts.environment = viper.GetString("environment")
			opts.logLevel = viper.GetString("log-level")
			opts.region = viper.GetString("region")

			log, err := logging.New(opts.logLevel)
			if err != nil {
				return err
			}
			opts.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.manifest, "manifest", "f", "stackctl.yaml", "Path to the stackctl manifest")
	pf.StringVarP(&opts.environment, "environment", "e", "", "Environment to operate on (defaults to the manifest's defaultEnvironment)")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&opts.region, "region", "", "Override the environment's AWS region")

	cmd.AddCommand(
		newDeployCommand(opts),
		newDeployOnlyCommand(opts),
		newBuildOnlyCommand(opts),
		newInfrastructureOnlyCommand(opts),
		newTeardownCommand(opts),
		newVerifyCommand(opts),
		newTrustCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

func handleError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, color.YellowString("Cancelled."))
		return
	}
	var timeout *stack.TimeoutError
	if errors.As(err, &timeout) {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.YellowString("Timed out:"), timeout.Error())
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), err)
}
