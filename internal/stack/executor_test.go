package stack

import (
	"context"
	"errors"
	"testing"
	"time"
)

type submitCall struct {
	Name       string
	Template   string
	Parameters map[string]string
}

// fakeBackend scripts Describe responses per stack: each call pops the next
// Description, and the last one repeats.
type fakeBackend struct {
	submits   []submitCall
	deletes   []string
	describes map[string]int

	descQueue map[string][]Description
	noChange  map[string]bool
	submitErr map[string]error
	deleteErr map[string]error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		describes: map[string]int{},
		descQueue: map[string][]Description{},
		noChange:  map[string]bool{},
		submitErr: map[string]error{},
		deleteErr: map[string]error{},
	}
}

func (f *fakeBackend) script(name string, descs ...Description) {
	f.descQueue[name] = descs
}

func (f *fakeBackend) Submit(ctx context.Context, name, templateRef string, parameters map[string]string, capabilities []string) (bool, error) {
	f.submits = append(f.submits, submitCall{Name: name, Template: templateRef, Parameters: parameters})
	if err := f.submitErr[name]; err != nil {
		return false, err
	}
	return f.noChange[name], nil
}

func (f *fakeBackend) Describe(ctx context.Context, name string) (Description, error) {
	queue := f.descQueue[name]
	if len(queue) == 0 {
		return Description{Status: StatusNotFound}, nil
	}
	idx := f.describes[name]
	f.describes[name]++
	if idx >= len(queue) {
		idx = len(queue) - 1
	}
	return queue[idx], nil
}

func (f *fakeBackend) Delete(ctx context.Context, name string) error {
	f.deletes = append(f.deletes, name)
	return f.deleteErr[name]
}

func newTestExecutor(backend Backend) *Executor {
	e := NewExecutor(backend, NewOutputStore(), nil)
	e.PollInterval = time.Millisecond
	e.Timeout = time.Second
	return e
}

func TestApply_PollsToCompleteAndStoresOutputs(t *testing.T) {
	backend := newFakeBackend()
	backend.script("network",
		Description{Status: StatusInProgress},
		Description{Status: StatusInProgress},
		Description{Status: StatusComplete, Outputs: map[string]string{"VpcId": "vpc-123"}},
	)
	e := newTestExecutor(backend)

	res, err := e.Apply(context.Background(), def("network"))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Status != StatusComplete {
		t.Fatalf("status=%s", res.Status)
	}
	if v, _ := e.Store.Get(OutputKey{Stack: "network", Output: "VpcId"}); v != "vpc-123" {
		t.Fatalf("stored output=%q", v)
	}
	if backend.describes["network"] != 3 {
		t.Fatalf("describe calls=%d", backend.describes["network"])
	}
}

func TestApply_IdempotentReapplyRefreshesStore(t *testing.T) {
	backend := newFakeBackend()
	backend.script("network", Description{Status: StatusComplete, Outputs: map[string]string{"VpcId": "vpc-123"}})
	e := newTestExecutor(backend)

	first, err := e.Apply(context.Background(), def("network"))
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}

	backend.noChange["network"] = true
	backend.describes["network"] = 0
	second, err := e.Apply(context.Background(), def("network"))
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if first.Status != StatusComplete || second.Status != StatusComplete {
		t.Fatalf("status first=%s second=%s", first.Status, second.Status)
	}
	if !second.NoChange {
		t.Fatalf("second apply should report no changes")
	}
	if v, _ := e.Store.Get(OutputKey{Stack: "network", Output: "VpcId"}); v != "vpc-123" {
		t.Fatalf("output not refreshed: %q", v)
	}
}

func TestApply_BackendFailureSurfacesReasonVerbatim(t *testing.T) {
	backend := newFakeBackend()
	backend.script("storage", Description{
		Status: StatusRolledBack,
		Reason: "Resource handler returned message: bucket name already exists",
	})
	e := newTestExecutor(backend)

	_, err := e.Apply(context.Background(), def("storage"))
	var failure *BackendFailure
	if !errors.As(err, &failure) {
		t.Fatalf("err=%v want BackendFailure", err)
	}
	if failure.Status != StatusRolledBack {
		t.Fatalf("status=%s", failure.Status)
	}
	if failure.Reason != "Resource handler returned message: bucket name already exists" {
		t.Fatalf("reason altered: %q", failure.Reason)
	}
	if failure.Verb != "apply" {
		t.Fatalf("verb=%q", failure.Verb)
	}
}

func TestApply_TimeoutReportedDistinctly(t *testing.T) {
	backend := newFakeBackend()
	backend.script("slow", Description{Status: StatusInProgress})
	e := newTestExecutor(backend)
	e.Timeout = 5 * time.Millisecond

	_, err := e.Apply(context.Background(), def("slow"))
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("err=%v want TimeoutError", err)
	}
	var failure *BackendFailure
	if errors.As(err, &failure) {
		t.Fatalf("timeout must not be a backend failure")
	}
}

func TestApply_UnresolvedOutputFailsBeforeSubmit(t *testing.T) {
	backend := newFakeBackend()
	e := newTestExecutor(backend)

	child := def("storage", "network")
	child.Parameters = map[string]string{"VpcId": "${network.VpcId}"}
	_, err := e.Apply(context.Background(), child)
	var unresolved *UnresolvedOutputError
	if !errors.As(err, &unresolved) {
		t.Fatalf("err=%v want UnresolvedOutputError", err)
	}
	if len(backend.submits) != 0 {
		t.Fatalf("submit issued despite unresolved parameters")
	}
}

func TestApplyAll_PropagatesOutputsToDependents(t *testing.T) {
	backend := newFakeBackend()
	backend.script("network", Description{Status: StatusComplete, Outputs: map[string]string{"VpcId": "vpc-42"}})
	backend.script("storage", Description{Status: StatusComplete, Outputs: map[string]string{"BucketName": "site"}})
	e := newTestExecutor(backend)

	child := def("storage", "network")
	child.Parameters = map[string]string{"VpcId": "${network.VpcId}"}
	ordered, err := Order(defs(def("network"), child))
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	results, err := e.ApplyAll(context.Background(), ordered)
	if err != nil {
		t.Fatalf("apply all: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results=%d", len(results))
	}
	if len(backend.submits) != 2 {
		t.Fatalf("submits=%d", len(backend.submits))
	}
	if got := backend.submits[1].Parameters["VpcId"]; got != "vpc-42" {
		t.Fatalf("child received %q, want parent output vpc-42", got)
	}
}

func TestApplyAll_StopsAtFirstFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.script("network", Description{Status: StatusFailed, Reason: "subnet conflict"})
	backend.script("storage", Description{Status: StatusComplete})
	e := newTestExecutor(backend)

	ordered, err := Order(defs(def("network"), def("storage", "network")))
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	results, err := e.ApplyAll(context.Background(), ordered)
	if err == nil {
		t.Fatalf("expected failure")
	}
	if len(results) != 1 {
		t.Fatalf("dependent ran after failed dependency: %d results", len(results))
	}
	for _, call := range backend.submits {
		if call.Name == "storage" {
			t.Fatalf("dependent submitted after failed dependency")
		}
	}
}
