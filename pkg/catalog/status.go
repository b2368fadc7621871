package catalog

import "fmt"

// WorkflowStatus is the review state of a Content record.
type WorkflowStatus string

const (
	StatusReview   WorkflowStatus = "Review"
	StatusApproved WorkflowStatus = "Approved"
	StatusRejected WorkflowStatus = "Rejected"
	StatusArchived WorkflowStatus = "Archived"
)

// DefaultStatus is assigned to new content when none is given.
const DefaultStatus = StatusReview

// WorkflowStatuses returns every valid status in display order.
func WorkflowStatuses() []WorkflowStatus {
	return []WorkflowStatus{StatusReview, StatusApproved, StatusRejected, StatusArchived}
}

// IsValid reports whether s is a member of the workflow set.
func (s WorkflowStatus) IsValid() bool {
	switch s {
	case StatusReview, StatusApproved, StatusRejected, StatusArchived:
		return true
	default:
		return false
	}
}

// ParseWorkflowStatus validates a status string. The empty string maps to
// DefaultStatus.
func ParseWorkflowStatus(s string) (WorkflowStatus, error) {
	if s == "" {
		return DefaultStatus, nil
	}
	status := WorkflowStatus(s)
	if !status.IsValid() {
		return "", &ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("%q is not a valid choice", s),
			Err:     ErrInvalidStatus,
		}
	}
	return status, nil
}
