package models

// Status is the shared lifecycle status used by tasks, allocations,
// reviewer allocations and submissions. The reviewer-allocation status is
// authoritative once a review exists; the copies on submission, allocation
// and task are denormalized for dashboard reads and are only ever written
// by the status cascade.
type Status string

const (
	StatusPending     Status = "pending"
	StatusInProgress  Status = "in_progress"
	StatusAssigned    Status = "assigned"
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusReviewed    Status = "reviewed"
	StatusAccepted    Status = "accepted"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusRevoked     Status = "revoked"
	StatusRedo        Status = "redo"
)

// IsDecision reports whether the status is a review outcome. Decision
// statuses stamp reviewed_at/completed_at when cascaded; pending does not.
func (s Status) IsDecision() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusRedo
}

// reviewOverrideStatuses are the values a reviewer may set directly through
// the manual review endpoint.
var reviewOverrideStatuses = map[Status]bool{
	StatusPending:  true,
	StatusAccepted: true,
	StatusRejected: true,
	StatusRedo:     true,
}

// IsReviewOverride reports whether a reviewer may set this status manually.
func (s Status) IsReviewOverride() bool {
	return reviewOverrideStatuses[s]
}

type TaskType string

const (
	TaskTypeAudio TaskType = "audio"
	TaskTypeText  TaskType = "text"
	TaskTypeImage TaskType = "image"
	TaskTypeVideo TaskType = "video"
)

// Valid reports whether t is one of the supported task types.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeAudio, TaskTypeText, TaskTypeImage, TaskTypeVideo:
		return true
	}
	return false
}
