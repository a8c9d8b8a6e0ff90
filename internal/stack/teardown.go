// File: internal/stack/teardown.go
// Brief: Best-effort teardown in reverse dependency order.

package stack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultDeleteTimeout = 30 * time.Minute

// Teardown deletes the given stacks, which must already be in reverse
// dependency order (ReverseOrder of the forward order used to create them).
// Each stack's deletion is attempted independently: a stuck stack must not
// prevent cleanup of successors whose dependents are already gone. Failures
// are collected and returned joined after the full pass.
func (e *Executor) Teardown(ctx context.Context, reversed []*Definition) ([]Result, error) {
	results := make([]Result, 0, len(reversed))
	var failures []error
	for _, def := range reversed {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		res, err := e.deleteOne(ctx, def)
		results = append(results, res)
		if err != nil {
			e.Log.Warn("teardown failed, continuing", zap.String("stack", def.Name), zap.Error(err))
			failures = append(failures, err)
		}
	}
	return results, errors.Join(failures...)
}

func (e *Executor) deleteOne(ctx context.Context, def *Definition) (Result, error) {
	start := time.Now()
	desc, err := e.Backend.Describe(ctx, def.Name)
	if err != nil {
		return Result{Stack: def.Name, Status: StatusFailed}, fmt.Errorf("stack %s: describe: %w", def.Name, err)
	}
	if desc.Status == StatusNotFound {
		e.Log.Info("stack already absent", zap.String("stack", def.Name))
		return Result{Stack: def.Name, Status: StatusNotFound, Reason: "already absent", Elapsed: time.Since(start)}, nil
	}

	e.Log.Info("deleting stack", zap.String("stack", def.Name))
	if err := e.Backend.Delete(ctx, def.Name); err != nil {
		return Result{Stack: def.Name, Status: StatusFailed}, fmt.Errorf("stack %s: delete: %w", def.Name, err)
	}

	desc, err = e.waitTerminal(ctx, def.Name, "delete", e.deleteTimeout(def))
	if err != nil {
		return Result{Stack: def.Name, Status: StatusInProgress, Elapsed: time.Since(start)}, err
	}
	res := Result{Stack: def.Name, Status: desc.Status, Reason: desc.Reason, Elapsed: time.Since(start)}
	switch desc.Status {
	case StatusNotFound, StatusComplete:
		// CloudFormation reports DELETE_COMPLETE briefly before the stack
		// disappears from describe; both mean the delete converged.
		e.Log.Info("stack deleted", zap.String("stack", def.Name), zap.Duration("elapsed", res.Elapsed))
		return res, nil
	default:
		return res, &BackendFailure{Stack: def.Name, Verb: "delete", Status: desc.Status, Reason: desc.Reason}
	}
}

func (e *Executor) deleteTimeout(def *Definition) time.Duration {
	if def.Delete.Timeout != nil && *def.Delete.Timeout > 0 {
		return *def.Delete.Timeout
	}
	if e.Timeout > 0 {
		return e.Timeout
	}
	return defaultDeleteTimeout
}
