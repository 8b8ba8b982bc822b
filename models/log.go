package models

import "time"

// LogAction enumerates the kinds of execution log entries.
type LogAction string

const (
	ActionStarted      LogAction = "started"
	ActionProgress     LogAction = "progress"
	ActionCompleted    LogAction = "completed"
	ActionFailed       LogAction = "failed"
	ActionBlocked      LogAction = "blocked"
	ActionResumed      LogAction = "resumed"
	ActionCancelled    LogAction = "cancelled"
	ActionVerification LogAction = "verification"
)

// ActorUser is the actor recorded for operator-initiated log entries.
const ActorUser = "user"

// ExecutionLogEntry is one row of a task's append-only audit trail.
// Entries are never updated or deleted once written; rows for a single
// task are totally ordered by timestamp.
type ExecutionLogEntry struct {
	ID           int64         `json:"id"`
	TaskID       string        `json:"taskId" validate:"required,uuid4"`
	Timestamp    time.Time     `json:"timestamp"`
	Actor        string        `json:"actor" validate:"required"` // agent name or "user"
	Action       LogAction     `json:"action" validate:"required,oneof=started progress completed failed blocked resumed cancelled verification"`
	Message      string        `json:"message,omitempty"`
	FilesTouched []string      `json:"filesTouched,omitempty"`
	ErrorDetail  string        `json:"errorDetail,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
}

// ActionForTransition maps a status transition to the log action
// recorded alongside it.
func ActionForTransition(from, to TaskStatus) LogAction {
	switch to {
	case StatusInProgress:
		if from == StatusCompleted {
			// QA reject reverts completed work.
			return ActionResumed
		}
		return ActionStarted
	case StatusCompleted:
		return ActionCompleted
	case StatusFailed:
		return ActionFailed
	case StatusBlocked:
		return ActionBlocked
	case StatusPending:
		return ActionResumed
	case StatusCancelled:
		return ActionCancelled
	case StatusQAApproved:
		return ActionVerification
	}
	return ActionProgress
}
