// Package metrics computes aggregate views over the task store for the
// operator surface.
package metrics

import (
	"context"
	"sort"

	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/store"
)

// FeatureProgress is the completion state of one feature area.
type FeatureProgress struct {
	FeatureArea string
	Total       int
	Done        int // completed or qa_approved
	Percent     float64
}

// AgentLoad is the open workload of one capability tag.
type AgentLoad struct {
	Agent string
	Open  int // pending, in_progress, or blocked
	Total int
}

// Summary aggregates the task population.
type Summary struct {
	TotalTasks int
	ByStatus   map[models.TaskStatus]int
	ByPriority map[models.TaskPriority]int
	Features   []FeatureProgress
	Agents     []AgentLoad
}

func openStatus(s models.TaskStatus) bool {
	switch s {
	case models.StatusPending, models.StatusInProgress, models.StatusBlocked:
		return true
	}
	return false
}

func doneStatus(s models.TaskStatus) bool {
	return s == models.StatusCompleted || s == models.StatusQAApproved
}

// Collect builds a Summary from the full task population.
func Collect(ctx context.Context, s store.TaskStore) (Summary, error) {
	tasks, err := s.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		ByStatus:   make(map[models.TaskStatus]int),
		ByPriority: make(map[models.TaskPriority]int),
	}
	features := make(map[string]*FeatureProgress)
	agents := make(map[string]*AgentLoad)

	for _, t := range tasks {
		sum.TotalTasks++
		sum.ByStatus[t.Status]++
		sum.ByPriority[t.Priority]++

		area := t.FeatureArea
		if area == "" {
			area = "(none)"
		}
		fp, ok := features[area]
		if !ok {
			fp = &FeatureProgress{FeatureArea: area}
			features[area] = fp
		}
		fp.Total++
		if doneStatus(t.Status) {
			fp.Done++
		}

		if t.AssignedAgent != "" {
			al, ok := agents[t.AssignedAgent]
			if !ok {
				al = &AgentLoad{Agent: t.AssignedAgent}
				agents[t.AssignedAgent] = al
			}
			al.Total++
			if openStatus(t.Status) {
				al.Open++
			}
		}
	}

	for _, fp := range features {
		if fp.Total > 0 {
			fp.Percent = float64(fp.Done) / float64(fp.Total) * 100
		}
		sum.Features = append(sum.Features, *fp)
	}
	sort.Slice(sum.Features, func(i, j int) bool {
		return sum.Features[i].FeatureArea < sum.Features[j].FeatureArea
	})

	for _, al := range agents {
		sum.Agents = append(sum.Agents, *al)
	}
	sort.Slice(sum.Agents, func(i, j int) bool {
		return sum.Agents[i].Agent < sum.Agents[j].Agent
	})

	return sum, nil
}
