// File: internal/config/config.go
// Brief: Environment manifest loading and validation.

// Package config loads the stackctl manifest: named environments, each with a
// region, an ordered stack set, verification targets, build settings, and
// federation trust settings. Parameter values and verification fields may
// embed ${stack.Output} references resolved at run time.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/stackctl/internal/stack"
)

const DefaultManifest = "stackctl.yaml"

// File is the parsed manifest.
type File struct {
	APIVersion         string                 `yaml:"apiVersion,omitempty"`
	DefaultEnvironment string                 `yaml:"defaultEnvironment,omitempty"`
	Environments       map[string]Environment `yaml:"environments"`
}

// Environment is one deployable target: its stack set plus the settings the
// surrounding workflow steps need.
type Environment struct {
	Name        string              `yaml:"-"`
	Region      string              `yaml:"region"`
	StackPrefix string              `yaml:"stackPrefix,omitempty"`
	Stacks      []*stack.Definition `yaml:"stacks"`
	Build       Build               `yaml:"build,omitempty"`
	Verify      Verify              `yaml:"verify,omitempty"`
	Trust       Trust               `yaml:"trust,omitempty"`

	PollInterval time.Duration `yaml:"pollInterval,omitempty"`
	StackTimeout time.Duration `yaml:"stackTimeout,omitempty"`
}

// Build configures the artifact build and upload step.
type Build struct {
	Dir     string   `yaml:"dir,omitempty"`
	Command string   `yaml:"command,omitempty"`
	Output  string   `yaml:"output,omitempty"`
	Env     []string `yaml:"env,omitempty"`
	// Bucket may reference a storage stack output, e.g. ${storage.BucketName}.
	Bucket string `yaml:"bucket,omitempty"`
}

// Verify configures the post-deploy probe targets. Fields may embed
// ${stack.Output} references.
type Verify struct {
	Stack        string   `yaml:"stack,omitempty"`
	Bucket       string   `yaml:"bucket,omitempty"`
	EntryObject  string   `yaml:"entryObject,omitempty"`
	Distribution string   `yaml:"distribution,omitempty"`
	URLs         []string `yaml:"urls,omitempty"`
}

// Trust configures the federation grant for the environment.
type Trust struct {
	Organization string `yaml:"organization,omitempty"`
	Repository   string `yaml:"repository,omitempty"`
	Branch       string `yaml:"branch,omitempty"`
	Role         string `yaml:"role,omitempty"`
	AccountID    string `yaml:"accountId,omitempty"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %q: %w", path, err)
	}
	var f File
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse manifest %q: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("manifest %q: %w", path, err)
	}
	return &f, nil
}

// Environment returns the named environment, falling back to the manifest's
// default when name is empty.
func (f *File) Environment(name string) (*Environment, error) {
	if name == "" {
		name = f.DefaultEnvironment
	}
	if name == "" {
		return nil, fmt.Errorf("no environment given and no defaultEnvironment set")
	}
	env, ok := f.Environments[name]
	if !ok {
		var known []string
		for k := range f.Environments {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("unknown environment %q (known: %s)", name, strings.Join(known, ", "))
	}
	env.Name = name
	return &env, nil
}

func (f *File) validate() error {
	if len(f.Environments) == 0 {
		return fmt.Errorf("no environments defined")
	}
	if f.DefaultEnvironment != "" {
		if _, ok := f.Environments[f.DefaultEnvironment]; !ok {
			return fmt.Errorf("defaultEnvironment %q is not defined", f.DefaultEnvironment)
		}
	}
	for name, env := range f.Environments {
		if strings.TrimSpace(env.Region) == "" {
			return fmt.Errorf("environment %s: region is required", name)
		}
		if len(env.Stacks) == 0 {
			return fmt.Errorf("environment %s: at least one stack is required", name)
		}
		seen := map[string]struct{}{}
		for _, def := range env.Stacks {
			if strings.TrimSpace(def.Name) == "" {
				return fmt.Errorf("environment %s: stack with empty name", name)
			}
			if _, dup := seen[def.Name]; dup {
				return fmt.Errorf("environment %s: duplicate stack name %q", name, def.Name)
			}
			seen[def.Name] = struct{}{}
			if strings.TrimSpace(def.Template) == "" {
				return fmt.Errorf("environment %s: stack %s: template is required", name, def.Name)
			}
		}
		// Ordering errors (cycles, unknown deps) surface here instead of
		// at run time so a bad manifest fails before any backend call.
		if _, err := stack.Order(env.Stacks); err != nil {
			return fmt.Errorf("environment %s: %w", name, err)
		}
	}
	return nil
}
