// File: internal/federation/scope.go
// Brief: Minimum permission scope for an environment's stack set.

package federation

import (
	"encoding/json"
	"fmt"
)

// ScopeInputs names the resources one environment's deployments touch.
type ScopeInputs struct {
	Region    string
	AccountID string
	// StackPrefix limits CloudFormation access to the environment's stacks.
	StackPrefix string
	// Bucket is the content bucket the deploy job syncs.
	Bucket string
}

// ScopedPolicy builds the minimum inline policy a deployment role needs:
// CloudFormation on the environment's stacks, object access on the content
// bucket, and read-only CloudFront status checks. It deliberately does not
// fall back to a broad managed administrator policy.
func ScopedPolicy(in ScopeInputs) (string, error) {
	if in.StackPrefix == "" || in.Bucket == "" {
		return "", fmt.Errorf("scoped policy requires a stack prefix and bucket")
	}
	region := in.Region
	if region == "" {
		region = "*"
	}
	account := in.AccountID
	if account == "" {
		account = "*"
	}
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Effect: "Allow",
				Action: []string{
					"cloudformation:CreateStack",
					"cloudformation:UpdateStack",
					"cloudformation:DeleteStack",
					"cloudformation:DescribeStacks",
					"cloudformation:DescribeStackEvents",
				},
				Resource: fmt.Sprintf("arn:aws:cloudformation:%s:%s:stack/%s*", region, account, in.StackPrefix),
			},
			{
				Effect: "Allow",
				Action: []string{
					"s3:PutObject",
					"s3:GetObject",
					"s3:DeleteObject",
					"s3:ListBucket",
					"s3:GetBucketPolicy",
				},
				Resource: []string{
					fmt.Sprintf("arn:aws:s3:::%s", in.Bucket),
					fmt.Sprintf("arn:aws:s3:::%s/*", in.Bucket),
				},
			},
			{
				Effect:   "Allow",
				Action:   []string{"cloudfront:GetDistribution", "cloudfront:CreateInvalidation"},
				Resource: "*",
			},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal scoped policy: %w", err)
	}
	return string(data), nil
}
