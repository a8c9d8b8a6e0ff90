// File: internal/stack/executor.go
// Brief: Per-stack apply with parameter resolution and terminal-status polling.

package stack

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultApplyTimeout = 30 * time.Minute
)

// Executor applies one stack at a time: it resolves output references against
// the store, submits the create/update, and polls the backend until a terminal
// status or the per-stack timeout. It is the output store's only writer.
type Executor struct {
	Backend      Backend
	Store        *OutputStore
	Log          *zap.Logger
	PollInterval time.Duration
	Timeout      time.Duration
}

func NewExecutor(backend Backend, store *OutputStore, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		Backend:      backend,
		Store:        store,
		Log:          log,
		PollInterval: defaultPollInterval,
		Timeout:      defaultApplyTimeout,
	}
}

// Apply provisions def and records its outputs in the store. Re-applying an
// already-complete stack with unchanged parameters is an update-with-no-changes
// and still refreshes the store. A failed stack is not retried here: blind
// retry of infrastructure mutations risks partial state, so retry is a caller
// decision.
func (e *Executor) Apply(ctx context.Context, def *Definition) (Result, error) {
	start := time.Now()
	resolved, err := e.Store.Resolve(def)
	if err != nil {
		return Result{Stack: def.Name, Status: StatusFailed}, err
	}

	e.Log.Info("submitting stack", zap.String("stack", def.Name), zap.String("template", def.Template))
	noChange, err := e.Backend.Submit(ctx, def.Name, def.Template, resolved, def.Capabilities)
	if err != nil {
		return Result{Stack: def.Name, Status: StatusFailed}, fmt.Errorf("stack %s: submit: %w", def.Name, err)
	}
	if noChange {
		e.Log.Info("no changes to apply", zap.String("stack", def.Name))
	}

	desc, err := e.waitTerminal(ctx, def.Name, "apply", e.applyTimeout(def))
	if err != nil {
		return Result{Stack: def.Name, Status: StatusInProgress, Elapsed: time.Since(start)}, err
	}
	res := Result{
		Stack:    def.Name,
		Status:   desc.Status,
		Reason:   desc.Reason,
		Elapsed:  time.Since(start),
		NoChange: noChange,
	}
	switch desc.Status {
	case StatusComplete:
		e.Store.Put(def.Name, desc.Outputs)
		res.Outputs = desc.Outputs
		e.Log.Info("stack complete",
			zap.String("stack", def.Name),
			zap.Int("outputs", len(desc.Outputs)),
			zap.Duration("elapsed", res.Elapsed))
		return res, nil
	case StatusFailed, StatusRolledBack:
		return res, &BackendFailure{Stack: def.Name, Verb: "apply", Status: desc.Status, Reason: desc.Reason}
	default:
		return res, fmt.Errorf("stack %s: unexpected terminal status %s", def.Name, desc.Status)
	}
}

// ApplyAll applies the ordered stacks sequentially, stopping at the first
// failure: a failed stack's dependents cannot resolve their inputs, so running
// them would only obscure the root cause. Cancellation is honored between
// stack boundaries.
func (e *Executor) ApplyAll(ctx context.Context, ordered []*Definition) ([]Result, error) {
	results := make([]Result, 0, len(ordered))
	for _, def := range ordered {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := e.Apply(ctx, def)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (e *Executor) applyTimeout(def *Definition) time.Duration {
	if def.Apply.Timeout != nil && *def.Apply.Timeout > 0 {
		return *def.Apply.Timeout
	}
	if e.Timeout > 0 {
		return e.Timeout
	}
	return defaultApplyTimeout
}

// waitTerminal polls Describe at a fixed cadence until the stack reaches a
// terminal status. The in-flight describe always completes before cancellation
// is honored: backend operations are not abortable mid-flight, so the caller
// gets a coherent last-known state.
func (e *Executor) waitTerminal(ctx context.Context, name, verb string, timeout time.Duration) (Description, error) {
	interval := e.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	deadline := time.Now().Add(timeout)
	for {
		desc, err := e.Backend.Describe(ctx, name)
		if err != nil {
			return Description{}, fmt.Errorf("stack %s: describe: %w", name, err)
		}
		if desc.Status.Terminal() {
			return desc, nil
		}
		if time.Now().After(deadline) {
			return Description{}, &TimeoutError{Stack: name, Verb: verb, Elapsed: timeout}
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return Description{}, ctx.Err()
		case <-t.C:
		}
	}
}
