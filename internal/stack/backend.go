// File: internal/stack/backend.go
// Brief: Provisioning backend contract (submit/describe/delete).

package stack

import "context"

// Description is the backend's answer to a status query. Outputs are only
// meaningful once Status is COMPLETE; Reason carries backend failure text
// verbatim.
type Description struct {
	Status  Status
	Reason  string
	Outputs map[string]string
}

// Backend is the tri-verb provisioning contract the orchestrator depends on.
// The backend owns real resource state and is queried fresh on every poll;
// the orchestrator never caches status across polls.
type Backend interface {
	// Submit issues a create-or-update for the named stack. It returns
	// noChange=true when the backend reports the submission is a no-op
	// update; the caller still refreshes outputs in that case.
	Submit(ctx context.Context, name, templateRef string, parameters map[string]string, capabilities []string) (noChange bool, err error)

	// Describe returns the stack's current status, outputs, and failure
	// reason. A missing stack yields StatusNotFound, not an error.
	Describe(ctx context.Context, name string) (Description, error)

	// Delete issues stack deletion. Deleting an absent stack is an error;
	// callers check Describe first.
	Delete(ctx context.Context, name string) error
}
