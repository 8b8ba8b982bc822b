package models

import "time"

// UserFeedback captures the operator's reaction to completed work.
type UserFeedback string

const (
	FeedbackApproved     UserFeedback = "approved"
	FeedbackRejected     UserFeedback = "rejected"
	FeedbackWorkAgain    UserFeedback = "work_again"
	FeedbackNeedsChanges UserFeedback = "needs_changes"
)

// Verification stores a QA pass/fail result plus user feedback for a
// task. A failed verification (or negative feedback) reopens the task;
// a later passing row supersedes earlier failures.
type Verification struct {
	ID           int64             `json:"id"`
	TaskID       string            `json:"taskId" validate:"required,uuid4"`
	VerifiedBy   string            `json:"verifiedBy" validate:"required"`
	Passed       bool              `json:"passed"`
	Notes        string            `json:"notes,omitempty"`
	TestResults  map[string]string `json:"testResults,omitempty"` // suite name -> outcome
	UserFeedback UserFeedback      `json:"userFeedback,omitempty" validate:"omitempty,oneof=approved rejected work_again needs_changes"`
	UserComments string            `json:"userComments,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// Negative reports whether this verification leaves an open issue on
// the task: a failed run, or feedback demanding more work.
func (v Verification) Negative() bool {
	if !v.Passed {
		return true
	}
	switch v.UserFeedback {
	case FeedbackRejected, FeedbackWorkAgain, FeedbackNeedsChanges:
		return true
	}
	return false
}
