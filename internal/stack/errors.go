// File: internal/stack/errors.go
// Brief: Error taxonomy for graph construction and execution.

package stack

import (
	"fmt"
	"strings"
	"time"
)

// CycleError reports a dependency cycle found at graph-construction time.
// Path holds the participating stack names in order, first repeated last.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "dependency cycle detected"
	}
	loop := append(append([]string(nil), e.Path...), e.Path[0])
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(loop, " -> "))
}

// UnknownDependencyError reports a dependsOn entry naming a stack that is not
// part of the input set.
type UnknownDependencyError struct {
	Stack      string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("stack %s depends on missing stack %q", e.Stack, e.Dependency)
}

// UnresolvedOutputError reports a parameter reference to an output that is not
// in the store. This signals an ordering defect in the run, not a backend
// error: the referenced stack either did not run or did not complete.
type UnresolvedOutputError struct {
	Stack     string
	Parameter string
	Ref       OutputKey
}

func (e *UnresolvedOutputError) Error() string {
	return fmt.Sprintf("stack %s parameter %s references unresolved output %s.%s", e.Stack, e.Parameter, e.Ref.Stack, e.Ref.Output)
}

// TimeoutError reports that polling exceeded the per-stack wall-clock budget.
// The backend operation may still converge out of band, so a timeout is
// reported distinctly from a backend failure.
type TimeoutError struct {
	Stack   string
	Verb    string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("stack %s: %s did not reach a terminal status within %s (operation may still converge)", e.Stack, e.Verb, e.Elapsed.Truncate(time.Second))
}

// BackendFailure reports an explicit FAILED or ROLLED_BACK terminal status.
// Reason carries the backend-reported failure text verbatim.
type BackendFailure struct {
	Stack  string
	Verb   string
	Status Status
	Reason string
}

func (e *BackendFailure) Error() string {
	if strings.TrimSpace(e.Reason) == "" {
		return fmt.Sprintf("stack %s: %s finished %s", e.Stack, e.Verb, e.Status)
	}
	return fmt.Sprintf("stack %s: %s finished %s: %s", e.Stack, e.Verb, e.Status, e.Reason)
}
