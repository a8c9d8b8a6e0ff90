// File: internal/artifact/build.go
// Brief: Site artifact build step (external build command).

// Package artifact builds the deployable site artifact and syncs it to the
// provisioned content bucket.
package artifact

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// BuildOptions configure the external build command.
type BuildOptions struct {
	// Dir is the working directory the command runs in.
	Dir string
	// Command is the build invocation, e.g. "npm run build". An empty
	// command skips the build step.
	Command string
	// Env entries are appended to the inherited environment (KEY=VALUE).
	Env []string
}

// Build runs the configured build command, streaming its output to the
// process's stdout/stderr. The build tool owns its own caching and
// incrementality; we only care about the exit status.
func Build(ctx context.Context, log *zap.Logger, opts BuildOptions) error {
	if log == nil {
		log = zap.NewNop()
	}
	cmdline := strings.TrimSpace(opts.Command)
	if cmdline == "" {
		log.Info("no build command configured, skipping build")
		return nil
	}
	fields := strings.Fields(cmdline)
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	log.Info("running build", zap.String("command", cmdline), zap.String("dir", opts.Dir))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("build command %q: %w", cmdline, err)
	}
	return nil
}
