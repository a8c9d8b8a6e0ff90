// File: internal/verify/probes.go
// Brief: Storage, edge-convergence, and reachability probes.

package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// StorageAPI is the S3 subset the storage probes use.
type StorageAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetBucketPolicy(ctx context.Context, params *s3.GetBucketPolicyInput, optFns ...func(*s3.Options)) (*s3.GetBucketPolicyOutput, error)
}

// EdgeAPI is the CloudFront subset the convergence probe uses.
type EdgeAPI interface {
	GetDistribution(ctx context.Context, params *cloudfront.GetDistributionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetDistributionOutput, error)
}

const edgeDeployedStatus = "Deployed"

// probeContent checks that the deployment's entry-point object exists in the
// provisioned bucket. A deployed stack with no content serves nothing, so
// this is required.
func (e *Engine) probeContent(ctx context.Context, target Target) ProbeResult {
	res := ProbeResult{Probe: "content", Required: true}
	if target.Bucket == "" || target.EntryObject == "" {
		res.Outcome = Fail
		res.Detail = "no bucket or entry object configured for content check"
		return res
	}
	_, err := e.Storage.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(target.Bucket),
		Key:    aws.String(target.EntryObject),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			res.Outcome = Fail
			res.Detail = fmt.Sprintf("entry object s3://%s/%s is missing", target.Bucket, target.EntryObject)
			return res
		}
		res.Outcome = Fail
		res.Detail = fmt.Sprintf("head s3://%s/%s: %v", target.Bucket, target.EntryObject, err)
		return res
	}
	res.Outcome = Pass
	res.Detail = fmt.Sprintf("entry object s3://%s/%s present", target.Bucket, target.EntryObject)
	return res
}

// probePolicy checks the bucket policy is attached. A bucket without its
// policy is either unreachable through the distribution or wide open, so this
// is required.
func (e *Engine) probePolicy(ctx context.Context, target Target) ProbeResult {
	res := ProbeResult{Probe: "policy", Required: true}
	if target.Bucket == "" {
		res.Outcome = Fail
		res.Detail = "no bucket configured for policy check"
		return res
	}
	out, err := e.Storage.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{Bucket: aws.String(target.Bucket)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucketPolicy" {
			res.Outcome = Fail
			res.Detail = fmt.Sprintf("bucket %s has no policy attached", target.Bucket)
			return res
		}
		res.Outcome = Fail
		res.Detail = fmt.Sprintf("get policy for bucket %s: %v", target.Bucket, err)
		return res
	}
	if strings.TrimSpace(aws.ToString(out.Policy)) == "" {
		res.Outcome = Fail
		res.Detail = fmt.Sprintf("bucket %s policy is empty", target.Bucket)
		return res
	}
	res.Outcome = Pass
	res.Detail = fmt.Sprintf("bucket %s policy attached", target.Bucket)
	return res
}

// probeEdgeConvergence waits for the distribution to report Deployed,
// retrying with backoff. Propagation routinely takes 10-15 minutes, so an
// exhausted budget is a warning, not a failure.
func (e *Engine) probeEdgeConvergence(ctx context.Context, target Target) ProbeResult {
	res := ProbeResult{Probe: "cdn", Required: false}
	if target.DistributionID == "" {
		res.Outcome = Warn
		res.Detail = "no distribution id configured; skipping edge convergence check"
		return res
	}
	attempts := e.EdgeRetry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastStatus string
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := e.Edge.GetDistribution(ctx, &cloudfront.GetDistributionInput{Id: aws.String(target.DistributionID)})
		if err != nil {
			res.Outcome = Warn
			res.Detail = fmt.Sprintf("get distribution %s: %v", target.DistributionID, err)
			return res
		}
		lastStatus = aws.ToString(out.Distribution.Status)
		if lastStatus == edgeDeployedStatus {
			res.Outcome = Pass
			res.Detail = fmt.Sprintf("distribution %s is %s", target.DistributionID, edgeDeployedStatus)
			return res
		}
		e.Log.Debug("distribution not yet converged",
			zap.String("distribution", target.DistributionID),
			zap.String("status", lastStatus),
			zap.Int("attempt", attempt))
		if attempt == attempts {
			break
		}
		if err := e.EdgeRetry.Wait(ctx, attempt); err != nil {
			res.Outcome = Warn
			res.Detail = fmt.Sprintf("distribution %s still %s when cancelled", target.DistributionID, lastStatus)
			return res
		}
	}
	res.Outcome = Warn
	res.Detail = fmt.Sprintf("distribution %s is %s after %d attempts; edge propagation can take 10-15 minutes", target.DistributionID, lastStatus, attempts)
	return res
}

// probeReachability issues unauthenticated GETs against every configured URL.
// DNS convergence is outside our control horizon, so failures warn with
// propagation guidance rather than failing the run.
func (e *Engine) probeReachability(ctx context.Context, target Target) ProbeResult {
	res := ProbeResult{Probe: "reachability", Required: false}
	if len(target.URLs) == 0 {
		res.Outcome = Warn
		res.Detail = "no URLs configured for reachability check"
		return res
	}
	var unreachable []string
	for _, url := range target.URLs {
		if err := e.probeURL(ctx, url); err != nil {
			unreachable = append(unreachable, fmt.Sprintf("%s (%v)", url, err))
		}
	}
	if len(unreachable) == 0 {
		res.Outcome = Pass
		res.Detail = fmt.Sprintf("all %d endpoint(s) reachable", len(target.URLs))
		return res
	}
	res.Outcome = Warn
	res.Detail = fmt.Sprintf("unreachable: %s; DNS propagation may still be in flight", strings.Join(unreachable, ", "))
	return res
}

func (e *Engine) probeURL(ctx context.Context, url string) error {
	attempts := e.ReachRetry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := e.HTTP.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
		} else {
			lastErr = err
		}
		if attempt == attempts {
			break
		}
		if err := e.ReachRetry.Wait(ctx, attempt); err != nil {
			return lastErr
		}
	}
	return lastErr
}
