package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stackctl.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

const validManifest = `
apiVersion: v1
defaultEnvironment: staging
environments:
  staging:
    region: us-east-1
    stackPrefix: webapp-staging-
    stacks:
      - name: network
        template: templates/network.yaml
        parameters:
          CidrBlock: 10.0.0.0/16
      - name: storage
        template: templates/storage.yaml
        dependsOn: [network]
        parameters:
          VpcId: ${network.VpcId}
      - name: backend
        template: templates/backend.yaml
        dependsOn: [storage]
        capabilities: [CAPABILITY_NAMED_IAM]
    build:
      dir: site
      command: npm run build
      output: site/dist
      bucket: ${storage.BucketName}
    verify:
      stack: backend
      bucket: ${storage.BucketName}
      entryObject: index.html
      distribution: ${backend.DistributionId}
      urls:
        - https://staging.example.com
    trust:
      organization: example
      repository: webapp
      branch: main
      role: webapp-staging-deployer
      accountId: "123456789012"
`

func TestLoad_ValidManifest(t *testing.T) {
	f, err := Load(writeManifest(t, validManifest))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	env, err := f.Environment("staging")
	if err != nil {
		t.Fatalf("environment: %v", err)
	}
	if env.Name != "staging" || env.Region != "us-east-1" {
		t.Fatalf("env=%+v", env)
	}
	if len(env.Stacks) != 3 {
		t.Fatalf("stacks=%d", len(env.Stacks))
	}
	if env.Stacks[1].Parameters["VpcId"] != "${network.VpcId}" {
		t.Fatalf("parameters=%v", env.Stacks[1].Parameters)
	}
	if env.Verify.Stack != "backend" || env.Trust.Organization != "example" {
		t.Fatalf("verify=%+v trust=%+v", env.Verify, env.Trust)
	}
}

func TestEnvironment_DefaultFallback(t *testing.T) {
	f, err := Load(writeManifest(t, validManifest))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	env, err := f.Environment("")
	if err != nil {
		t.Fatalf("environment: %v", err)
	}
	if env.Name != "staging" {
		t.Fatalf("default env=%q", env.Name)
	}
}

func TestEnvironment_UnknownListsKnown(t *testing.T) {
	f, err := Load(writeManifest(t, validManifest))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err = f.Environment("production")
	if err == nil || !strings.Contains(err.Error(), "staging") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoad_RejectsDuplicateStackNames(t *testing.T) {
	_, err := Load(writeManifest(t, `
environments:
  staging:
    region: us-east-1
    stacks:
      - name: network
        template: a.yaml
      - name: network
        template: b.yaml
`))
	if err == nil || !strings.Contains(err.Error(), "duplicate stack name") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoad_RejectsDependencyCycle(t *testing.T) {
	_, err := Load(writeManifest(t, `
environments:
  staging:
    region: us-east-1
    stacks:
      - name: a
        template: a.yaml
        dependsOn: [b]
      - name: b
        template: b.yaml
        dependsOn: [a]
`))
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoad_RejectsMissingRegion(t *testing.T) {
	_, err := Load(writeManifest(t, `
environments:
  staging:
    stacks:
      - name: network
        template: a.yaml
`))
	if err == nil || !strings.Contains(err.Error(), "region is required") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoad_RejectsMissingTemplate(t *testing.T) {
	_, err := Load(writeManifest(t, `
environments:
  staging:
    region: us-east-1
    stacks:
      - name: network
`))
	if err == nil || !strings.Contains(err.Error(), "template is required") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(writeManifest(t, `
environments:
  staging:
    region: us-east-1
    stakcs:
      - name: network
        template: a.yaml
`))
	if err == nil {
		t.Fatalf("typo in manifest accepted")
	}
}

func TestLoad_RejectsUndefinedDefaultEnvironment(t *testing.T) {
	_, err := Load(writeManifest(t, `
defaultEnvironment: production
environments:
  staging:
    region: us-east-1
    stacks:
      - name: network
        template: a.yaml
`))
	if err == nil || !strings.Contains(err.Error(), "production") {
		t.Fatalf("err=%v", err)
	}
}
