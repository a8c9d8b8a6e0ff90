// File: internal/stack/types.go
// Brief: Stack definition and status types.

package stack

import "time"

// Definition describes one named unit of infrastructure: a template reference,
// a parameter set, and the stacks it depends on. Parameter values may reference
// outputs of dependency stacks with the ${stack.Output} syntax; references are
// resolved against the run's output store immediately before submission.
type Definition struct {
	Name         string            `yaml:"name" json:"name"`
	Template     string            `yaml:"template" json:"template"`
	Parameters   map[string]string `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	DependsOn    []string          `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
	Capabilities []string          `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`

	Apply  ApplyOptions  `yaml:"apply,omitempty" json:"apply,omitempty"`
	Delete DeleteOptions `yaml:"delete,omitempty" json:"delete,omitempty"`
}

type ApplyOptions struct {
	Timeout *time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

type DeleteOptions struct {
	Timeout *time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Status is the orchestrator's view of a stack's lifecycle state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusComplete   Status = "COMPLETE"
	StatusFailed     Status = "FAILED"
	StatusRolledBack Status = "ROLLED_BACK"
	StatusNotFound   Status = "NOT_FOUND"
)

// Terminal reports whether no further backend-driven transition can occur
// without a new operation.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusRolledBack, StatusNotFound:
		return true
	default:
		return false
	}
}

// Result captures the terminal outcome of one apply or delete.
type Result struct {
	Stack    string            `json:"stack"`
	Status   Status            `json:"status"`
	Reason   string            `json:"reason,omitempty"`
	Outputs  map[string]string `json:"outputs,omitempty"`
	Elapsed  time.Duration     `json:"elapsed"`
	NoChange bool              `json:"noChange,omitempty"`
}
