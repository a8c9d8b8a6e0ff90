// File: cmd/stackctl/clients.go
// Brief: Manifest loading and AWS client wiring shared by the subcommands.

package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/example/stackctl/internal/cfn"
	"github.com/example/stackctl/internal/config"
	"github.com/example/stackctl/internal/run"
)

func loadEnvironment(opts *rootOptions) (*config.Environment, error) {
	f, err := config.Load(opts.manifest)
	if err != nil {
		return nil, err
	}
	env, err := f.Environment(opts.environment)
	if err != nil {
		return nil, err
	}
	if opts.region != "" {
		env.Region = opts.region
	}
	return env, nil
}

func buildRunner(ctx context.Context, opts *rootOptions) (*run.Runner, error) {
	env, err := loadEnvironment(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(env.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	r := run.New(env, cfn.New(cloudformation.NewFromConfig(cfg)), opts.log)
	s3Client := s3.NewFromConfig(cfg)
	r.Storage = s3Client
	r.Uploader = s3Client
	r.Edge = cloudfront.NewFromConfig(cfg)
	return r, nil
}
