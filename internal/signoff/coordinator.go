// Package signoff implements the QA sign-off consensus protocol: which
// reviewers a task needs, tracking their decisions, and deciding when
// consensus is reached.
package signoff

import (
	"context"
	"fmt"

	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/store"
	"github.com/tradeops/taskforge/types"
)

// WildcardArea matches any feature area for a task type.
const WildcardArea = "*"

// DefaultReviewer reviews tasks with no configured requirement.
const DefaultReviewer = "qa"

// Coordinator maps (task type, feature area) to required reviewer sets
// and tracks per-task approvals.
type Coordinator struct {
	store store.TaskStore
	rules []models.SignOffRequirement
}

// NewCoordinator creates a coordinator over the given requirement table.
func NewCoordinator(s store.TaskStore, rules []models.SignOffRequirement) *Coordinator {
	return &Coordinator{store: s, rules: rules}
}

// SetRules swaps the requirement table; new reviews opened after the
// call use the new rules while rows already created keep their agents.
func (c *Coordinator) SetRules(rules []models.SignOffRequirement) {
	c.rules = rules
}

// RequirementFor resolves the sign-off requirement for a task: exact
// (type, feature area) match first, then the (type, "*") wildcard,
// then a global single-reviewer default.
func (c *Coordinator) RequirementFor(task models.Task) models.SignOffRequirement {
	for _, r := range c.rules {
		if r.TaskType == task.Type && r.FeatureArea == task.FeatureArea {
			return r
		}
	}
	for _, r := range c.rules {
		if r.TaskType == task.Type && r.FeatureArea == WildcardArea {
			return r
		}
	}
	return models.SignOffRequirement{
		TaskType:       task.Type,
		FeatureArea:    WildcardArea,
		RequiredAgents: []string{DefaultReviewer},
		MinApprovals:   1,
	}
}

// TriggerReview opens a review round for the task, creating one
// pending sign-off row per required agent.
func (c *Coordinator) TriggerReview(ctx context.Context, task models.Task) error {
	req := c.RequirementFor(task)
	if err := c.store.CreatePendingSignOffs(ctx, task.ID, req.RequiredAgents); err != nil {
		return fmt.Errorf("open review for task %s: %w", task.ID, err)
	}
	return nil
}

// RecordDecision stores a reviewer's verdict. Agents outside the
// required set are rejected. A "reject" is a protocol side effect, not
// merely data: the task reverts to in_progress.
func (c *Coordinator) RecordDecision(ctx context.Context, taskID, agent string, decision models.SignOffDecision) error {
	if decision != models.DecisionApprove && decision != models.DecisionReject {
		return types.ValidationError("decision must be approve or reject, got %q", decision)
	}

	task, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	req := c.RequirementFor(task)
	if !req.RequiresAgent(agent) {
		return types.ValidationError("agent %q is not a required reviewer for task %s (required: %v)", agent, taskID, req.RequiredAgents)
	}

	if err := c.store.AddSignOff(ctx, models.AgentSignOff{
		TaskID:   taskID,
		Agent:    agent,
		Decision: decision,
		IsFinal:  true,
	}); err != nil {
		return err
	}

	if err := c.store.AppendLog(ctx, models.ExecutionLogEntry{
		TaskID:  taskID,
		Actor:   agent,
		Action:  models.ActionVerification,
		Message: fmt.Sprintf("sign-off: %s", decision),
	}); err != nil {
		return err
	}

	// A reject reverts the task, but only once: a second rejection, or
	// one landing after a failed verification already reopened the task,
	// finds it in_progress and has nothing to undo.
	if decision == models.DecisionReject && task.Status == models.StatusCompleted {
		if _, err := c.store.UpdateTaskStatus(ctx, taskID, models.StatusInProgress, agent, "QA rejected; reverted"); err != nil {
			return fmt.Errorf("revert task %s after rejection: %w", taskID, err)
		}
	}
	return nil
}

// ReviewStatus returns the current approval count and the approvals
// required for consensus, counting only each agent's most recent final
// decision. Prior approvals survive another agent's rejection; only
// the rejecting agent must re-review.
func (c *Coordinator) ReviewStatus(ctx context.Context, task models.Task) (approved, required int, err error) {
	req := c.RequirementFor(task)
	latest, err := c.store.LatestSignOffs(ctx, task.ID)
	if err != nil {
		return 0, 0, err
	}
	for _, agent := range req.RequiredAgents {
		if so, ok := latest[agent]; ok && so.Decision == models.DecisionApprove {
			approved++
		}
	}
	return approved, req.MinApprovals, nil
}

// ConsensusReached reports whether enough required agents' latest
// decisions are approvals. When MinApprovals equals the size of the
// required set the policy is unanimous consent: one outstanding
// reviewer or one rejection blocks consensus until re-review.
func (c *Coordinator) ConsensusReached(ctx context.Context, task models.Task) (bool, error) {
	approved, required, err := c.ReviewStatus(ctx, task)
	if err != nil {
		return false, err
	}
	return approved >= required, nil
}
