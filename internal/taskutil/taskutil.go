// Package taskutil normalizes operator-typed task fields.
package taskutil

import (
	"strings"

	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/types"
)

// NormalizePriority maps common inputs and typos to canonical
// priorities. Returns one of: critical, high, medium, low. Empty input
// stays empty.
func NormalizePriority(input string) (models.TaskPriority, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", nil
	}

	switch s {
	case "critical", "high", "medium", "low":
		return models.TaskPriority(s), nil
	case "crit", "c", "urgent", "asap", "emergency", "p0":
		return models.PriorityCritical, nil
	case "hi", "h", "important", "p1":
		return models.PriorityHigh, nil
	case "med", "m", "normal", "regular", "p2", "p3":
		return models.PriorityMedium, nil
	case "lo", "l", "minor", "p4", "p5":
		return models.PriorityLow, nil
	}

	return "", types.ValidationError("unknown priority %q", input)
}

// NormalizeStatus maps common aliases to canonical statuses.
func NormalizeStatus(input string) (models.TaskStatus, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.ReplaceAll(s, "-", "_")
	if s == "" {
		return "", nil
	}

	switch s {
	case "pending", "in_progress", "blocked", "completed", "failed", "cancelled", "qa_approved":
		return models.TaskStatus(s), nil
	case "todo", "queued", "open":
		return models.StatusPending, nil
	case "doing", "active", "started", "inprogress", "wip":
		return models.StatusInProgress, nil
	case "done", "complete", "finished":
		return models.StatusCompleted, nil
	case "canceled", "dropped":
		return models.StatusCancelled, nil
	case "approved", "signed_off":
		return models.StatusQAApproved, nil
	}

	return "", types.ValidationError("unknown status %q", input)
}

// NormalizeType maps aliases to canonical task types.
func NormalizeType(input string) (models.TaskType, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.ReplaceAll(s, "-", "_")
	if s == "" {
		return "", nil
	}

	switch s {
	case "feature", "bug_fix", "enhancement", "qa", "refactor", "documentation", "investigation":
		return models.TaskType(s), nil
	case "feat":
		return models.TypeFeature, nil
	case "bug", "bugfix", "fix", "hotfix":
		return models.TypeBugFix, nil
	case "docs", "doc":
		return models.TypeDocumentation, nil
	case "spike", "research":
		return models.TypeInvestigation, nil
	}

	return "", types.ValidationError("unknown task type %q", input)
}
