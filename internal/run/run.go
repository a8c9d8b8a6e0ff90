// File: internal/run/run.go
// Brief: Environment-level workflow wiring (deploy, verify, teardown).

// Package run ties the manifest, the executor, the verification engine, and
// the artifact steps into the workflows the CLI exposes.
package run

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/stackctl/internal/artifact"
	"github.com/example/stackctl/internal/config"
	"github.com/example/stackctl/internal/stack"
	"github.com/example/stackctl/internal/verify"
)

// Runner executes workflows for one environment. The AWS-facing fields are
// interfaces so tests drive the workflows against fakes.
type Runner struct {
	Env      *config.Environment
	Backend  stack.Backend
	Storage  verify.StorageAPI
	Edge     verify.EdgeAPI
	Uploader artifact.UploaderAPI
	Log      *zap.Logger

	store    *stack.OutputStore
	executor *stack.Executor
}

func New(env *config.Environment, backend stack.Backend, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	store := stack.NewOutputStore()
	exec := stack.NewExecutor(backend, store, log)
	if env.PollInterval > 0 {
		exec.PollInterval = env.PollInterval
	}
	if env.StackTimeout > 0 {
		exec.Timeout = env.StackTimeout
	}
	return &Runner{
		Env:      env,
		Backend:  backend,
		Log:      log,
		store:    store,
		executor: exec,
	}
}

// Store exposes the run's output store for report rendering.
func (r *Runner) Store() *stack.OutputStore { return r.store }

// Infrastructure applies the environment's stacks in dependency order,
// propagating outputs between them.
func (r *Runner) Infrastructure(ctx context.Context) ([]stack.Result, error) {
	ordered, err := stack.Order(r.Env.Stacks)
	if err != nil {
		return nil, err
	}
	r.Log.Info("applying stacks",
		zap.String("environment", r.Env.Name),
		zap.Int("stacks", len(ordered)))
	return r.executor.ApplyAll(ctx, ordered)
}

// Teardown deletes the environment's stacks in reverse dependency order,
// best effort.
func (r *Runner) Teardown(ctx context.Context) ([]stack.Result, error) {
	ordered, err := stack.Order(r.Env.Stacks)
	if err != nil {
		return nil, err
	}
	r.Log.Info("tearing down stacks",
		zap.String("environment", r.Env.Name),
		zap.Int("stacks", len(ordered)))
	return r.executor.Teardown(ctx, stack.ReverseOrder(ordered))
}

// Build runs the environment's artifact build command.
func (r *Runner) Build(ctx context.Context) error {
	return artifact.Build(ctx, r.Log, artifact.BuildOptions{
		Dir:     r.Env.Build.Dir,
		Command: r.Env.Build.Command,
		Env:     r.Env.Build.Env,
	})
}

// Upload syncs the built artifact into the content bucket. The bucket setting
// may reference a stack output, so the store must be populated first (by
// Infrastructure or PrimeOutputs).
func (r *Runner) Upload(ctx context.Context) (int, error) {
	if r.Uploader == nil {
		return 0, fmt.Errorf("no uploader configured")
	}
	if r.Env.Build.Output == "" {
		return 0, fmt.Errorf("environment %s has no build.output directory configured", r.Env.Name)
	}
	bucket, err := r.store.ExpandValue(r.Env.Name, "build.bucket", r.Env.Build.Bucket)
	if err != nil {
		return 0, err
	}
	up := artifact.NewUploader(r.Uploader, r.Log)
	return up.Upload(ctx, bucket, r.Env.Build.Output)
}

// Verify runs the probe sequence against the environment's verify target.
func (r *Runner) Verify(ctx context.Context) (*verify.Report, error) {
	target, err := r.verifyTarget()
	if err != nil {
		return nil, err
	}
	engine := verify.NewEngine(r.Backend, r.Storage, r.Edge, r.Log)
	return engine.Run(ctx, target), nil
}

// PrimeOutputs re-resolves outputs of already-complete stacks from the live
// backend. Workflows that skip the apply phase (deploy-only, verify,
// teardown re-entry after partial failure) call this so output references
// still resolve; outputs are never persisted across runs.
func (r *Runner) PrimeOutputs(ctx context.Context) error {
	for _, def := range r.Env.Stacks {
		desc, err := r.Backend.Describe(ctx, def.Name)
		if err != nil {
			return fmt.Errorf("stack %s: describe: %w", def.Name, err)
		}
		if desc.Status == stack.StatusComplete {
			r.store.Put(def.Name, desc.Outputs)
		}
	}
	return nil
}

func (r *Runner) verifyTarget() (verify.Target, error) {
	v := r.Env.Verify
	if v.Stack == "" {
		return verify.Target{}, fmt.Errorf("environment %s has no verify.stack configured", r.Env.Name)
	}
	expand := func(field, value string) (string, error) {
		return r.store.ExpandValue(r.Env.Name, field, value)
	}
	bucket, err := expand("verify.bucket", v.Bucket)
	if err != nil {
		return verify.Target{}, err
	}
	dist, err := expand("verify.distribution", v.Distribution)
	if err != nil {
		return verify.Target{}, err
	}
	urls := make([]string, 0, len(v.URLs))
	for i, raw := range v.URLs {
		u, err := expand(fmt.Sprintf("verify.urls[%d]", i), raw)
		if err != nil {
			return verify.Target{}, err
		}
		urls = append(urls, u)
	}
	return verify.Target{
		Stack:          v.Stack,
		Bucket:         bucket,
		EntryObject:    v.EntryObject,
		DistributionID: dist,
		URLs:           urls,
	}, nil
}

// Deploy is the full workflow: build, infrastructure, upload, verify.
// deployOnly skips the infrastructure phase, buildArtifact controls the build
// step, infraOnly stops after the stacks are applied.
type DeployOptions struct {
	BuildArtifact  bool
	Infrastructure bool
	UploadContent  bool
	RunVerify      bool
}

// Deploy drives the selected phases in order and returns the verification
// report when verification ran.
func (r *Runner) Deploy(ctx context.Context, opts DeployOptions) (*verify.Report, error) {
	start := time.Now()
	if opts.BuildArtifact {
		if err := r.Build(ctx); err != nil {
			return nil, err
		}
	}
	if opts.Infrastructure {
		if _, err := r.Infrastructure(ctx); err != nil {
			return nil, err
		}
	} else if opts.UploadContent || opts.RunVerify {
		if err := r.PrimeOutputs(ctx); err != nil {
			return nil, err
		}
	}
	if opts.UploadContent {
		if _, err := r.Upload(ctx); err != nil {
			return nil, err
		}
	}
	var report *verify.Report
	if opts.RunVerify {
		var err error
		report, err = r.Verify(ctx)
		if err != nil {
			return nil, err
		}
	}
	r.Log.Info("run finished",
		zap.String("environment", r.Env.Name),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
	return report, nil
}
