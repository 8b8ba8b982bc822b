// Package resolver answers eligibility questions over the task store:
// may a task run, and may it be finalized.
package resolver

import (
	"context"
	"fmt"

	"github.com/tradeops/taskforge/internal/signoff"
	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/store"
)

// Resolver evaluates dependency and consensus conditions for tasks.
type Resolver struct {
	store   store.TaskStore
	signoff *signoff.Coordinator
}

// New creates a resolver over the given store and coordinator.
func New(s store.TaskStore, c *signoff.Coordinator) *Resolver {
	return &Resolver{store: s, signoff: c}
}

// dependencySatisfied reports whether a dependency's status unblocks
// its dependents.
func dependencySatisfied(status models.TaskStatus) bool {
	return status == models.StatusCompleted || status == models.StatusQAApproved
}

// EligibleToRun reports whether every dependency of the task has
// reached completed or qa_approved.
func (r *Resolver) EligibleToRun(ctx context.Context, task models.Task) (bool, error) {
	statuses, err := r.store.DependencyStatuses(ctx, task.ID)
	if err != nil {
		return false, err
	}
	for _, depID := range task.Dependencies {
		if !dependencySatisfied(statuses[depID]) {
			return false, nil
		}
	}
	return true, nil
}

// EligibleToFinalize reports whether the task may advance to
// qa_approved: dependencies satisfied, sign-off consensus reached, and
// no open verification issues. On failure the reason names the first
// unmet condition, suitable for user-facing error messages.
func (r *Resolver) EligibleToFinalize(ctx context.Context, task models.Task) (bool, string, error) {
	statuses, err := r.store.DependencyStatuses(ctx, task.ID)
	if err != nil {
		return false, "", err
	}
	pending := 0
	for _, depID := range task.Dependencies {
		if !dependencySatisfied(statuses[depID]) {
			pending++
		}
	}
	if pending > 0 {
		return false, fmt.Sprintf("%d dependencies pending", pending), nil
	}

	approved, required, err := r.signoff.ReviewStatus(ctx, task)
	if err != nil {
		return false, "", err
	}
	if approved < required {
		return false, fmt.Sprintf("%d sign-offs pending", required-approved), nil
	}

	open, err := r.store.OpenIssueCount(ctx, task.ID)
	if err != nil {
		return false, "", err
	}
	if open > 0 {
		return false, fmt.Sprintf("%d open verification issues", open), nil
	}

	return true, "", nil
}
