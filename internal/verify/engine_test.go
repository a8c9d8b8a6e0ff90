package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/example/stackctl/internal/stack"
)

type fakeBackend struct {
	desc stack.Description
	err  error
}

func (f *fakeBackend) Submit(ctx context.Context, name, templateRef string, parameters map[string]string, capabilities []string) (bool, error) {
	return false, nil
}

func (f *fakeBackend) Describe(ctx context.Context, name string) (stack.Description, error) {
	return f.desc, f.err
}

func (f *fakeBackend) Delete(ctx context.Context, name string) error { return nil }

type fakeStorage struct {
	headErr   error
	policy    string
	policyErr error
}

func (f *fakeStorage) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeStorage) GetBucketPolicy(ctx context.Context, in *s3.GetBucketPolicyInput, _ ...func(*s3.Options)) (*s3.GetBucketPolicyOutput, error) {
	if f.policyErr != nil {
		return nil, f.policyErr
	}
	return &s3.GetBucketPolicyOutput{Policy: aws.String(f.policy)}, nil
}

type fakeEdge struct {
	statuses []string
	calls    int
}

func (f *fakeEdge) GetDistribution(ctx context.Context, in *cloudfront.GetDistributionInput, _ ...func(*cloudfront.Options)) (*cloudfront.GetDistributionOutput, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return &cloudfront.GetDistributionOutput{
		Distribution: &cftypes.Distribution{Status: aws.String(f.statuses[idx])},
	}, nil
}

func newTestEngine(backend stack.Backend, storage StorageAPI, edge EdgeAPI) *Engine {
	e := NewEngine(backend, storage, edge, nil)
	e.EdgeRetry = stack.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	e.ReachRetry = stack.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}
	e.HTTP = &http.Client{Timeout: time.Second}
	return e
}

func target() Target {
	return Target{
		Stack:          "backend",
		Bucket:         "site-bucket",
		EntryObject:    "index.html",
		DistributionID: "E123",
	}
}

func outcomes(report *Report) map[string]Outcome {
	out := map[string]Outcome{}
	for _, res := range report.Results {
		out[res.Probe] = res.Outcome
	}
	return out
}

func TestRun_PassWithTwoWarnings(t *testing.T) {
	// Healthy stack and storage, unconverged edge, unreachable endpoint:
	// advisory trouble must degrade to warnings, not failure.
	backend := &fakeBackend{desc: stack.Description{Status: stack.StatusComplete}}
	storage := &fakeStorage{policy: `{"Version":"2012-10-17"}`}
	edge := &fakeEdge{statuses: []string{"InProgress"}}

	e := newTestEngine(backend, storage, edge)
	tgt := target()
	tgt.URLs = []string{"http://127.0.0.1:1"}

	report := e.Run(context.Background(), tgt)
	if !report.OK {
		t.Fatalf("report not OK: %+v", report.Results)
	}
	got := outcomes(report)
	if got["stack-health"] != Pass || got["content"] != Pass || got["policy"] != Pass {
		t.Fatalf("required probes: %v", got)
	}
	if got["cdn"] != Warn || got["reachability"] != Warn {
		t.Fatalf("advisory probes: %v", got)
	}
	if warns := report.Warnings(); len(warns) != 2 {
		t.Fatalf("warnings=%d", len(warns))
	}
}

func TestRun_MissingContentFails(t *testing.T) {
	backend := &fakeBackend{desc: stack.Description{Status: stack.StatusComplete}}
	storage := &fakeStorage{headErr: &s3types.NotFound{}, policy: "{}"}
	edge := &fakeEdge{statuses: []string{"Deployed"}}

	e := newTestEngine(backend, storage, edge)
	report := e.Run(context.Background(), target())
	if report.OK {
		t.Fatalf("report should fail")
	}
	got := outcomes(report)
	if got["content"] != Fail {
		t.Fatalf("content=%s", got["content"])
	}
	if _, ran := got["cdn"]; ran {
		t.Fatalf("advisory probes ran after required failure")
	}
	if edge.calls != 0 {
		t.Fatalf("edge probed after required failure")
	}
}

func TestRun_MissingPolicyFails(t *testing.T) {
	backend := &fakeBackend{desc: stack.Description{Status: stack.StatusComplete}}
	storage := &fakeStorage{
		policyErr: &smithy.GenericAPIError{Code: "NoSuchBucketPolicy", Message: "The bucket policy does not exist"},
	}
	edge := &fakeEdge{statuses: []string{"Deployed"}}

	e := newTestEngine(backend, storage, edge)
	report := e.Run(context.Background(), target())
	if report.OK {
		t.Fatalf("report should fail")
	}
	if got := outcomes(report); got["policy"] != Fail {
		t.Fatalf("policy=%s", got["policy"])
	}
}

func TestRun_UnhealthyStackFailsFast(t *testing.T) {
	backend := &fakeBackend{desc: stack.Description{Status: stack.StatusRolledBack, Reason: "boom"}}
	edge := &fakeEdge{statuses: []string{"Deployed"}}

	e := newTestEngine(backend, &fakeStorage{}, edge)
	report := e.Run(context.Background(), target())
	if report.OK {
		t.Fatalf("report should fail")
	}
	if len(report.Results) != 1 {
		t.Fatalf("probes after stack-health failure: %+v", report.Results)
	}
}

func TestRun_EdgeConvergesAfterRetry(t *testing.T) {
	backend := &fakeBackend{desc: stack.Description{Status: stack.StatusComplete}}
	storage := &fakeStorage{policy: "{}"}
	edge := &fakeEdge{statuses: []string{"InProgress", "Deployed"}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := newTestEngine(backend, storage, edge)
	tgt := target()
	tgt.URLs = []string{srv.URL}

	report := e.Run(context.Background(), tgt)
	if !report.OK {
		t.Fatalf("report not OK: %+v", report.Results)
	}
	got := outcomes(report)
	if got["cdn"] != Pass {
		t.Fatalf("cdn=%s after convergence", got["cdn"])
	}
	if got["reachability"] != Pass {
		t.Fatalf("reachability=%s", got["reachability"])
	}
	if edge.calls != 2 {
		t.Fatalf("edge calls=%d", edge.calls)
	}
}
