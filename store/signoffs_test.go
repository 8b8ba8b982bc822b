package store

import (
	"context"
	"testing"

	"github.com/tradeops/taskforge/models"
)

func TestSignOffs_LatestPerAgent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	task := mustCreateTask(t, s, nil)

	if err := s.CreatePendingSignOffs(ctx, task.ID, []string{"qa", "security"}); err != nil {
		t.Fatalf("CreatePendingSignOffs failed: %v", err)
	}

	// qa rejects, then approves after rework. security approves once.
	decisions := []models.AgentSignOff{
		{TaskID: task.ID, Agent: "qa", Decision: models.DecisionReject, IsFinal: true},
		{TaskID: task.ID, Agent: "security", Decision: models.DecisionApprove, IsFinal: true},
		{TaskID: task.ID, Agent: "qa", Decision: models.DecisionApprove, IsFinal: true},
	}
	for _, d := range decisions {
		if err := s.AddSignOff(ctx, d); err != nil {
			t.Fatalf("AddSignOff failed: %v", err)
		}
	}

	latest, err := s.LatestSignOffs(ctx, task.ID)
	if err != nil {
		t.Fatalf("LatestSignOffs failed: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 agents with final decisions, got %d", len(latest))
	}
	if latest["qa"].Decision != models.DecisionApprove {
		t.Errorf("qa latest decision = %s, want approve (re-review supersedes reject)", latest["qa"].Decision)
	}
	if latest["security"].Decision != models.DecisionApprove {
		t.Errorf("security latest decision = %s, want approve", latest["security"].Decision)
	}

	// History keeps every row: 2 pending + 3 decisions.
	history, err := s.ListSignOffs(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListSignOffs failed: %v", err)
	}
	if len(history) != 5 {
		t.Errorf("expected 5 history rows, got %d", len(history))
	}
}

func TestSignOffs_PendingRowsExcludedFromLatest(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	task := mustCreateTask(t, s, nil)
	if err := s.CreatePendingSignOffs(ctx, task.ID, []string{"qa"}); err != nil {
		t.Fatalf("CreatePendingSignOffs failed: %v", err)
	}

	latest, err := s.LatestSignOffs(ctx, task.ID)
	if err != nil {
		t.Fatalf("LatestSignOffs failed: %v", err)
	}
	if len(latest) != 0 {
		t.Errorf("pending rows should not count as final decisions, got %d", len(latest))
	}
}
