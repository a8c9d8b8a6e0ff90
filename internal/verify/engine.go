// File: internal/verify/engine.go
// Brief: Post-deploy health probe sequencing and aggregation.

// Package verify runs health probes against a deployed stack set. Required
// probes gate overall success; advisory probes (edge convergence, external
// reachability) degrade to warnings because their success criteria depend on
// propagation outside the system's control.
package verify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/stackctl/internal/stack"
)

// Outcome is a single probe's verdict.
type Outcome string

const (
	Pass Outcome = "PASS"
	Warn Outcome = "WARN"
	Fail Outcome = "FAIL"
)

// ProbeResult is one probe's outcome plus human-readable detail.
type ProbeResult struct {
	Probe    string  `json:"probe"`
	Outcome  Outcome `json:"outcome"`
	Required bool    `json:"required"`
	Detail   string  `json:"detail"`
}

// Report aggregates a verification run. OK is false only when a required
// probe failed; warnings never turn a successful run into a failure.
type Report struct {
	Results []ProbeResult `json:"results"`
	OK      bool          `json:"ok"`
}

func (r *Report) Warnings() []ProbeResult {
	var out []ProbeResult
	for _, res := range r.Results {
		if res.Outcome == Warn {
			out = append(out, res)
		}
	}
	return out
}

// Target names the deployed resources one verification run inspects.
type Target struct {
	Stack          string
	Bucket         string
	EntryObject    string
	DistributionID string
	// URLs probed for external reachability: the distribution's native
	// domain plus any custom domains.
	URLs []string
}

// Engine wires the probe dependencies. Zero-value retry/timeout fields get
// conservative defaults.
type Engine struct {
	Backend stack.Backend
	Storage StorageAPI
	Edge    EdgeAPI
	HTTP    *http.Client
	Log     *zap.Logger

	// EdgeRetry bounds the advisory wait for distribution convergence.
	// Edge propagation routinely takes 10-15 minutes.
	EdgeRetry stack.RetryPolicy
	// ReachRetry bounds the advisory reachability probe.
	ReachRetry stack.RetryPolicy
}

func NewEngine(backend stack.Backend, storage StorageAPI, edge EdgeAPI, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		Backend:    backend,
		Storage:    storage,
		Edge:       edge,
		HTTP:       &http.Client{Timeout: 15 * time.Second},
		Log:        log,
		EdgeRetry:  stack.RetryPolicy{MaxAttempts: 8, BaseDelay: 15 * time.Second, MaxDelay: 3 * time.Minute},
		ReachRetry: stack.RetryPolicy{MaxAttempts: 3, BaseDelay: 5 * time.Second, MaxDelay: 30 * time.Second},
	}
}

// Run executes the probe sequence. Required probes gate what follows:
// a stack that is not COMPLETE fails immediately, and content/policy failures
// skip the advisory probes since their subjects cannot be healthy. The two
// required storage probes run concurrently, as do the two advisory probes.
func (e *Engine) Run(ctx context.Context, target Target) *Report {
	report := &Report{OK: true}

	health := e.probeStackHealth(ctx, target)
	report.append(health)
	if health.Outcome == Fail {
		return report
	}

	var content, policy ProbeResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		content = e.probeContent(gctx, target)
		return nil
	})
	g.Go(func() error {
		policy = e.probePolicy(gctx, target)
		return nil
	})
	_ = g.Wait()
	report.append(content)
	report.append(policy)
	if content.Outcome == Fail || policy.Outcome == Fail {
		return report
	}

	var edge, reach ProbeResult
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		edge = e.probeEdgeConvergence(gctx, target)
		return nil
	})
	g.Go(func() error {
		reach = e.probeReachability(gctx, target)
		return nil
	})
	_ = g.Wait()
	report.append(edge)
	report.append(reach)
	return report
}

func (r *Report) append(res ProbeResult) {
	if res.Probe == "" {
		return
	}
	r.Results = append(r.Results, res)
	if res.Required && res.Outcome == Fail {
		r.OK = false
	}
}

func (e *Engine) probeStackHealth(ctx context.Context, target Target) ProbeResult {
	res := ProbeResult{Probe: "stack-health", Required: true}
	desc, err := e.Backend.Describe(ctx, target.Stack)
	if err != nil {
		res.Outcome = Fail
		res.Detail = fmt.Sprintf("describe %s: %v", target.Stack, err)
		return res
	}
	if desc.Status != stack.StatusComplete {
		res.Outcome = Fail
		res.Detail = fmt.Sprintf("stack %s status is %s, want %s", target.Stack, desc.Status, stack.StatusComplete)
		if desc.Reason != "" {
			res.Detail += ": " + desc.Reason
		}
		return res
	}
	res.Outcome = Pass
	res.Detail = fmt.Sprintf("stack %s is %s", target.Stack, desc.Status)
	return res
}
