package models

import "time"

// SignOffDecision is a reviewer's verdict on a task.
type SignOffDecision string

const (
	DecisionApprove SignOffDecision = "approve"
	DecisionReject  SignOffDecision = "reject"
	DecisionPending SignOffDecision = "pending"
)

// AgentSignOff records one reviewer decision for a task. A re-review
// after a rejection appends a new row rather than updating the old one,
// preserving review history; consensus counts only the most recent
// final row per agent.
type AgentSignOff struct {
	ID        int64           `json:"id"`
	TaskID    string          `json:"taskId" validate:"required,uuid4"`
	Agent     string          `json:"agent" validate:"required"`
	Decision  SignOffDecision `json:"decision" validate:"required,oneof=approve reject pending"`
	Timestamp time.Time       `json:"timestamp"`
	IsFinal   bool            `json:"isFinal"`
}

// SignOffRequirement configures which reviewers must approve tasks of a
// given type within a feature area. FeatureArea "*" is the wildcard
// fallback for the task type.
type SignOffRequirement struct {
	TaskType       TaskType `json:"taskType" yaml:"task_type" validate:"required"`
	FeatureArea    string   `json:"featureArea" yaml:"feature_area" validate:"required"`
	RequiredAgents []string `json:"requiredAgents" yaml:"required_agents" validate:"required,min=1"`
	MinApprovals   int      `json:"minApprovals" yaml:"min_approvals" validate:"required,min=1"`
}

// Unanimous reports whether the requirement demands every reviewer's
// approval. One outstanding reviewer or one rejection then blocks
// consensus until re-review.
func (r SignOffRequirement) Unanimous() bool {
	return r.MinApprovals == len(r.RequiredAgents)
}

// RequiresAgent reports whether the agent is part of the required set.
func (r SignOffRequirement) RequiresAgent(agent string) bool {
	for _, a := range r.RequiredAgents {
		if a == agent {
			return true
		}
	}
	return false
}
