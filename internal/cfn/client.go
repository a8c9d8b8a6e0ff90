// File: internal/cfn/client.go
// Brief: CloudFormation adapter implementing the tri-verb backend contract.

// Package cfn adapts AWS CloudFormation to the orchestrator's backend
// contract. The orchestrator only depends on submit/describe/delete; every
// other CloudFormation capability is out of scope.
package cfn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"

	"github.com/example/stackctl/internal/stack"
)

// API is the subset of the CloudFormation client the adapter uses.
type API interface {
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	DescribeStackEvents(ctx context.Context, params *cloudformation.DescribeStackEventsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error)
}

// Client implements stack.Backend over CloudFormation.
type Client struct {
	api API
}

func New(api API) *Client {
	return &Client{api: api}
}

// Submit issues an update, falling back to create when the stack does not
// exist. An update with no changes is reported via noChange rather than an
// error so the caller can still refresh outputs.
func (c *Client) Submit(ctx context.Context, name, templateRef string, parameters map[string]string, capabilities []string) (bool, error) {
	body, err := readTemplate(templateRef)
	if err != nil {
		return false, err
	}
	params := toParameters(parameters)
	caps := toCapabilities(capabilities)

	_, err = c.api.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(name),
		TemplateBody: aws.String(body),
		Parameters:   params,
		Capabilities: caps,
	})
	switch {
	case err == nil:
		return false, nil
	case isNoUpdateErr(err):
		return true, nil
	case isNotExistErr(err):
		_, err = c.api.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:    aws.String(name),
			TemplateBody: aws.String(body),
			Parameters:   params,
			Capabilities: caps,
		})
		if err != nil {
			return false, fmt.Errorf("create stack: %w", err)
		}
		return false, nil
	default:
		return false, fmt.Errorf("update stack: %w", err)
	}
}

// Describe maps the stack's live CloudFormation state onto the orchestrator's
// status model. A missing stack is StatusNotFound, not an error. When the
// stack failed but carries no top-level reason, the most recent failed
// resource event supplies one.
func (c *Client) Describe(ctx context.Context, name string) (stack.Description, error) {
	out, err := c.api.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(name)})
	if err != nil {
		if isNotExistErr(err) {
			return stack.Description{Status: stack.StatusNotFound}, nil
		}
		return stack.Description{}, err
	}
	if len(out.Stacks) == 0 {
		return stack.Description{Status: stack.StatusNotFound}, nil
	}
	s := out.Stacks[0]
	desc := stack.Description{
		Status:  mapStatus(s.StackStatus),
		Reason:  aws.ToString(s.StackStatusReason),
		Outputs: toOutputMap(s.Outputs),
	}
	if (desc.Status == stack.StatusFailed || desc.Status == stack.StatusRolledBack) && desc.Reason == "" {
		desc.Reason = c.failureReason(ctx, name)
	}
	return desc, nil
}

func (c *Client) Delete(ctx context.Context, name string) error {
	_, err := c.api.DeleteStack(ctx, &cloudformation.DeleteStackInput{StackName: aws.String(name)})
	if err != nil {
		return fmt.Errorf("delete stack: %w", err)
	}
	return nil
}

// failureReason scans recent stack events for the first resource-level failure
// text, which is usually more specific than the stack-level reason.
func (c *Client) failureReason(ctx context.Context, name string) string {
	out, err := c.api.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{StackName: aws.String(name)})
	if err != nil {
		return ""
	}
	for _, ev := range out.StackEvents {
		status := string(ev.ResourceStatus)
		reason := aws.ToString(ev.ResourceStatusReason)
		if strings.Contains(status, "FAILED") && reason != "" && reason != "Resource creation cancelled" {
			return fmt.Sprintf("%s %s: %s", aws.ToString(ev.LogicalResourceId), status, reason)
		}
	}
	return ""
}

func readTemplate(templateRef string) (string, error) {
	data, err := os.ReadFile(templateRef)
	if err != nil {
		return "", fmt.Errorf("read template %q: %w", templateRef, err)
	}
	return string(data), nil
}

func toParameters(parameters map[string]string) []cfntypes.Parameter {
	keys := make([]string, 0, len(parameters))
	for k := range parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]cfntypes.Parameter, 0, len(keys))
	for _, k := range keys {
		out = append(out, cfntypes.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(parameters[k]),
		})
	}
	return out
}

func toCapabilities(capabilities []string) []cfntypes.Capability {
	out := make([]cfntypes.Capability, 0, len(capabilities))
	for _, c := range capabilities {
		out = append(out, cfntypes.Capability(c))
	}
	return out
}

func toOutputMap(outputs []cfntypes.Output) map[string]string {
	if len(outputs) == 0 {
		return nil
	}
	out := make(map[string]string, len(outputs))
	for _, o := range outputs {
		out[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return out
}

func isNoUpdateErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "No updates are to be performed")
}

func isNotExistErr(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist") {
		return true
	}
	return strings.Contains(err.Error(), "does not exist")
}
