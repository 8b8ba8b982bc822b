package cmd

import (
	"context"
	"strings"

	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/store"
	"github.com/tradeops/taskforge/types"
)

// resolveTask finds a task by full id or unique id prefix.
func resolveTask(ctx context.Context, s store.TaskStore, idOrPrefix string) (models.Task, error) {
	task, err := s.GetTask(ctx, idOrPrefix)
	if err == nil {
		return task, nil
	}

	tasks, listErr := s.ListTasks(ctx, store.TaskFilter{})
	if listErr != nil {
		return models.Task{}, listErr
	}

	var matches []models.Task
	for _, t := range tasks {
		if strings.HasPrefix(t.ID, idOrPrefix) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return models.Task{}, types.NotFoundError(idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return models.Task{}, types.ValidationError("id prefix %q is ambiguous (%d matches)", idOrPrefix, len(matches))
	}
}
