package store

import (
	"context"
	"time"

	"github.com/tradeops/taskforge/models"
)

// TaskFilter narrows ListTasks results. Zero-valued fields match
// everything. Results are always ordered priority descending, then
// created_at ascending.
type TaskFilter struct {
	Status        models.TaskStatus
	Priority      models.TaskPriority
	FeatureArea   string
	AssignedAgent string
	Tag           string
}

// TaskStore defines the persistence contract for the orchestration
// engine. Tasks are never hard-deleted: cancellation is a status
// transition and the execution log is append-only, preserving the
// audit trail indefinitely.
type TaskStore interface {
	// CreateTask validates and inserts a task with its dependency
	// edges. It fails with a validation error if any dependency id is
	// unknown or the edge set would introduce a cycle.
	CreateTask(ctx context.Context, task models.Task) (models.Task, error)

	// GetTask retrieves a task by id.
	GetTask(ctx context.Context, id string) (models.Task, error)

	// ListTasks returns tasks matching the filter in stable order.
	ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error)

	// UpdateTaskStatus is the sole mutator of task status. It enforces
	// the transition table and appends the matching execution log
	// entry in the same transaction.
	UpdateTaskStatus(ctx context.Context, id string, newStatus models.TaskStatus, actor, message string) (models.Task, error)

	// ForceTaskStatus applies an operator override that bypasses the
	// transition table (still refusing terminal states as source),
	// logging the actor and reason.
	ForceTaskStatus(ctx context.Context, id string, newStatus models.TaskStatus, reason string) (models.Task, error)

	// CancelTask cancels a non-terminal task. Cancellation is logged
	// and does not roll back completed dependency effects.
	CancelTask(ctx context.Context, id, reason string) (models.Task, error)

	// ClaimTask atomically moves a pending task to in_progress,
	// consuming one rate token in the same transaction. It returns
	// types.ErrConcurrencyLost if another scheduler won the race and
	// types.ErrRateLimited if the rolling window is exhausted.
	ClaimTask(ctx context.Context, id, actor string, maxPerHour int) (models.Task, error)

	// OldestClaimInWindow returns the timestamp of the oldest claim in
	// the current rolling window, so a rate-limited loop can sleep
	// until a token frees instead of busy-polling. ok is false when
	// the window is empty.
	OldestClaimInWindow(ctx context.Context) (t time.Time, ok bool, err error)

	// DependencyStatuses returns the status of every dependency of the
	// given task, keyed by dependency id.
	DependencyStatuses(ctx context.Context, taskID string) (map[string]models.TaskStatus, error)

	// AppendLog writes a standalone execution log entry (progress
	// notes, dispatch errors). Status transitions log implicitly.
	AppendLog(ctx context.Context, entry models.ExecutionLogEntry) error

	// ListLog returns a task's execution log ordered by timestamp.
	ListLog(ctx context.Context, taskID string) ([]models.ExecutionLogEntry, error)

	// CreatePendingSignOffs inserts one pending review row per agent.
	CreatePendingSignOffs(ctx context.Context, taskID string, agents []string) error

	// AddSignOff appends a reviewer decision row (IsFinal set).
	AddSignOff(ctx context.Context, s models.AgentSignOff) error

	// LatestSignOffs returns each agent's most recent final decision
	// row for the task.
	LatestSignOffs(ctx context.Context, taskID string) (map[string]models.AgentSignOff, error)

	// ListSignOffs returns the task's full review history.
	ListSignOffs(ctx context.Context, taskID string) ([]models.AgentSignOff, error)

	// RecordVerification stores a QA result and its log entry.
	RecordVerification(ctx context.Context, v models.Verification) error

	// ListVerifications returns a task's verification history.
	ListVerifications(ctx context.Context, taskID string) ([]models.Verification, error)

	// OpenIssueCount counts verification rows still blocking the task:
	// negative results not superseded by a later passing one.
	OpenIssueCount(ctx context.Context, taskID string) (int, error)

	// ReserveBudget atomically checks the projected ledger total
	// against the limit and records a reservation. Returns
	// types.ErrBudgetExceeded when the projection breaches the cap.
	ReserveBudget(ctx context.Context, taskID string, projected, limit float64) error

	// SettleBudget records the worker-reported cost against the
	// task's reservation.
	SettleBudget(ctx context.Context, taskID string, cost float64) error

	// BudgetTotals returns the capped total (reservations included)
	// and the settled spend.
	BudgetTotals(ctx context.Context) (reserved, settled float64, err error)

	// Close releases the underlying database connection.
	Close() error
}
