// File: internal/federation/provisioner.go
// Brief: Idempotent GitHub OIDC trust role provisioning.

// Package federation provisions the IAM role a CI job assumes via GitHub's
// OIDC provider, scoped to one repository/branch pair. It never creates the
// OIDC provider itself: that is a one-time higher-privilege operation treated
// as an external precondition.
package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"go.uber.org/zap"
)

const githubIssuer = "token.actions.githubusercontent.com"

// API is the IAM subset the provisioner uses.
type API interface {
	ListOpenIDConnectProviders(ctx context.Context, params *iam.ListOpenIDConnectProvidersInput, optFns ...func(*iam.Options)) (*iam.ListOpenIDConnectProvidersOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	UpdateAssumeRolePolicy(ctx context.Context, params *iam.UpdateAssumeRolePolicyInput, optFns ...func(*iam.Options)) (*iam.UpdateAssumeRolePolicyOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
}

// Grant identifies one trust relationship. Re-issuing a grant with the same
// key updates the existing role in place; it never duplicates it.
type Grant struct {
	Organization  string
	Repository    string
	BranchPattern string
	RoleName      string
	// PermissionPolicy is the inline JSON policy attached to the role.
	// Use ScopedPolicy to derive the minimum scope for an environment.
	PermissionPolicy string
}

// MissingProviderError reports that no GitHub OIDC provider exists in the
// account. Creating one is deliberately out of scope here.
type MissingProviderError struct {
	Issuer string
}

func (e *MissingProviderError) Error() string {
	return fmt.Sprintf("no OIDC provider for issuer %s; create it once with account-admin credentials before provisioning trust", e.Issuer)
}

// Provisioner creates or updates federation trust roles.
type Provisioner struct {
	api API
	log *zap.Logger
}

func New(api API, log *zap.Logger) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{api: api, log: log}
}

// NewFromRegion builds a Provisioner with the default AWS credential chain.
func NewFromRegion(ctx context.Context, region string, log *zap.Logger) (*Provisioner, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(iam.NewFromConfig(cfg), log), nil
}

// EnsureTrust makes the grant's role exist with a trust policy restricting
// AssumeRoleWithWebIdentity to the exact repository/branch subject claim, and
// attaches the grant's permission policy. Safe to re-run: an existing role is
// updated, not duplicated. Returns the role ARN.
func (p *Provisioner) EnsureTrust(ctx context.Context, grant Grant) (string, error) {
	if err := validateGrant(grant); err != nil {
		return "", err
	}
	providerARN, err := p.findProvider(ctx)
	if err != nil {
		return "", err
	}

	trustDoc, err := trustPolicy(providerARN, grant)
	if err != nil {
		return "", err
	}

	roleARN, exists, err := p.lookupRole(ctx, grant.RoleName)
	if err != nil {
		return "", err
	}
	if exists {
		p.log.Info("updating trust policy on existing role", zap.String("role", grant.RoleName))
		_, err = p.api.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
			RoleName:       aws.String(grant.RoleName),
			PolicyDocument: aws.String(trustDoc),
		})
		if err != nil {
			return "", fmt.Errorf("update assume-role policy for %s: %w", grant.RoleName, err)
		}
	} else {
		p.log.Info("creating trust role", zap.String("role", grant.RoleName),
			zap.String("subject", subjectClaim(grant)))
		out, err := p.api.CreateRole(ctx, &iam.CreateRoleInput{
			RoleName:                 aws.String(grant.RoleName),
			AssumeRolePolicyDocument: aws.String(trustDoc),
			Description:              aws.String(fmt.Sprintf("Deployment trust for %s/%s (%s)", grant.Organization, grant.Repository, grant.BranchPattern)),
		})
		if err != nil {
			return "", fmt.Errorf("create role %s: %w", grant.RoleName, err)
		}
		roleARN = aws.ToString(out.Role.Arn)
	}

	if strings.TrimSpace(grant.PermissionPolicy) != "" {
		_, err = p.api.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
			RoleName:       aws.String(grant.RoleName),
			PolicyName:     aws.String("deployment-scope"),
			PolicyDocument: aws.String(grant.PermissionPolicy),
		})
		if err != nil {
			return "", fmt.Errorf("attach permission policy to %s: %w", grant.RoleName, err)
		}
	}
	return roleARN, nil
}

func (p *Provisioner) findProvider(ctx context.Context) (string, error) {
	out, err := p.api.ListOpenIDConnectProviders(ctx, &iam.ListOpenIDConnectProvidersInput{})
	if err != nil {
		return "", fmt.Errorf("list OIDC providers: %w", err)
	}
	for _, entry := range out.OpenIDConnectProviderList {
		arn := aws.ToString(entry.Arn)
		if strings.Contains(arn, githubIssuer) {
			return arn, nil
		}
	}
	return "", &MissingProviderError{Issuer: githubIssuer}
}

func (p *Provisioner) lookupRole(ctx context.Context, name string) (string, bool, error) {
	out, err := p.api.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err != nil {
		var notFound *iamtypes.NoSuchEntityException
		if errors.As(err, &notFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get role %s: %w", name, err)
	}
	return aws.ToString(out.Role.Arn), true, nil
}

func validateGrant(grant Grant) error {
	switch {
	case strings.TrimSpace(grant.Organization) == "":
		return fmt.Errorf("grant organization is required")
	case strings.TrimSpace(grant.Repository) == "":
		return fmt.Errorf("grant repository is required")
	case strings.TrimSpace(grant.BranchPattern) == "":
		return fmt.Errorf("grant branch pattern is required")
	case strings.TrimSpace(grant.RoleName) == "":
		return fmt.Errorf("grant role name is required")
	}
	return nil
}

func subjectClaim(grant Grant) string {
	return fmt.Sprintf("repo:%s/%s:ref:refs/heads/%s", grant.Organization, grant.Repository, grant.BranchPattern)
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string              `json:"Effect"`
	Principal map[string]string   `json:"Principal,omitempty"`
	Action    any                 `json:"Action"`
	Resource  any                 `json:"Resource,omitempty"`
	Condition map[string]anyClaim `json:"Condition,omitempty"`
}

type anyClaim map[string]string

func trustPolicy(providerARN string, grant Grant) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Federated": providerARN},
			Action:    "sts:AssumeRoleWithWebIdentity",
			Condition: map[string]anyClaim{
				"StringEquals": {githubIssuer + ":aud": "sts.amazonaws.com"},
				"StringLike":   {githubIssuer + ":sub": subjectClaim(grant)},
			},
		}},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal trust policy: %w", err)
	}
	return string(data), nil
}
