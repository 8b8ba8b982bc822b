package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// TaskStatus represents the possible statuses of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusBlocked    TaskStatus = "blocked"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusCancelled  TaskStatus = "cancelled"
	StatusQAApproved TaskStatus = "qa_approved"
)

// TaskType classifies the kind of work a task represents.
type TaskType string

const (
	TypeFeature       TaskType = "feature"
	TypeBugFix        TaskType = "bug_fix"
	TypeEnhancement   TaskType = "enhancement"
	TypeQA            TaskType = "qa"
	TypeRefactor      TaskType = "refactor"
	TypeDocumentation TaskType = "documentation"
	TypeInvestigation TaskType = "investigation"
)

// TaskPriority represents the priority levels of a task.
type TaskPriority string

const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityMedium   TaskPriority = "medium"
	PriorityLow      TaskPriority = "low"
)

// PriorityRank maps priorities to a sortable rank; higher runs first.
func PriorityRank(p TaskPriority) int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Task represents a unit of work tracked from creation through execution
// to multi-reviewer approval.
type Task struct {
	ID                string        `json:"id" validate:"required,uuid4"`
	Title             string        `json:"title" validate:"required,min=3,max=255"`
	Description       string        `json:"description,omitempty"`
	Type              TaskType      `json:"type" validate:"required,oneof=feature bug_fix enhancement qa refactor documentation investigation"`
	Priority          TaskPriority  `json:"priority" validate:"required,oneof=critical high medium low"`
	Status            TaskStatus    `json:"status" validate:"required,oneof=pending in_progress blocked completed failed cancelled qa_approved"`
	AssignedAgent     string        `json:"assignedAgent,omitempty"` // capability tag, resolved against the routing table
	FeatureArea       string        `json:"featureArea,omitempty"`
	Dependencies      []string      `json:"dependencies,omitempty" validate:"dive,uuid4"` // Task IDs this task depends on
	Tags              []string      `json:"tags,omitempty"`
	EstimatedDuration time.Duration `json:"estimatedDuration,omitempty"`
	CreatedAt         time.Time     `json:"createdAt" validate:"required"`
	StartedAt         *time.Time    `json:"startedAt,omitempty"`
	CompletedAt       *time.Time    `json:"completedAt,omitempty"`
	UpdatedAt         time.Time     `json:"updatedAt" validate:"required"`
}

var terminalStatuses = map[TaskStatus]bool{
	StatusQAApproved: true,
	StatusCancelled:  true,
}

// IsTerminal reports whether the status admits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// allowedTransitions is the task state machine. Cancellation from any
// non-terminal state is handled separately in CanTransition. A failed
// task is terminal for the attempt; re-queueing it is an operator
// force-update, not a regular transition.
var allowedTransitions = map[TaskStatus][]TaskStatus{
	StatusPending:    {StatusInProgress, StatusBlocked},
	StatusInProgress: {StatusCompleted, StatusFailed, StatusBlocked},
	StatusBlocked:    {StatusPending},
	StatusCompleted:  {StatusInProgress, StatusQAApproved},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to TaskStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// HasDependency reports whether the task lists depID as a dependency.
func (t *Task) HasDependency(depID string) bool {
	for _, d := range t.Dependencies {
		if d == depID {
			return true
		}
	}
	return false
}

// HasTag reports whether the task carries the given tag.
func (t *Task) HasTag(tag string) bool {
	for _, tg := range t.Tags {
		if tg == tag {
			return true
		}
	}
	return false
}

// global validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct performs validation on any struct that has validation tags.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, e := range validationErrors {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s' (value: '%v')", e.StructNamespace(), e.Tag(), e.Value()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// NewTask creates a task with generated timestamps and sane defaults.
// The caller supplies the ID (a uuid4) so stores stay ID-agnostic.
func NewTask(id, title string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:           id,
		Title:        title,
		Type:         TypeFeature,
		Status:       StatusPending,
		Priority:     PriorityMedium,
		Dependencies: []string{},
		Tags:         []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
