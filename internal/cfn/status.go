// File: internal/cfn/status.go
// Brief: CloudFormation status string mapping.

package cfn

import (
	"strings"

	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/example/stackctl/internal/stack"
)

// mapStatus folds CloudFormation's status vocabulary onto the orchestrator's
// model. Rollback terminal states are distinguished from plain failures so
// callers can report that the backend unwound the change.
func mapStatus(s cfntypes.StackStatus) stack.Status {
	status := string(s)
	switch status {
	case "CREATE_COMPLETE", "UPDATE_COMPLETE", "IMPORT_COMPLETE":
		return stack.StatusComplete
	case "DELETE_COMPLETE":
		return stack.StatusNotFound
	case "CREATE_FAILED", "UPDATE_FAILED", "DELETE_FAILED", "IMPORT_ROLLBACK_FAILED":
		return stack.StatusFailed
	case "ROLLBACK_COMPLETE", "ROLLBACK_FAILED",
		"UPDATE_ROLLBACK_COMPLETE", "UPDATE_ROLLBACK_FAILED",
		"IMPORT_ROLLBACK_COMPLETE":
		return stack.StatusRolledBack
	}
	if strings.HasSuffix(status, "_IN_PROGRESS") || status == "REVIEW_IN_PROGRESS" {
		return stack.StatusInProgress
	}
	// Unknown terminal-looking states are treated as failures rather than
	// polling forever.
	return stack.StatusFailed
}
