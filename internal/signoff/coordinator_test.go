package signoff

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/store"
	"github.com/tradeops/taskforge/types"
)

func setupCoordinator(t *testing.T, rules []models.SignOffRequirement) (*Coordinator, *store.SQLiteStore) {
	t.Helper()

	s, err := store.NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return NewCoordinator(s, rules), s
}

func createCompletedTask(t *testing.T, s *store.SQLiteStore, mutate func(*models.Task)) models.Task {
	t.Helper()
	ctx := context.Background()

	task := models.NewTask(uuid.New().String(), "Reviewable Task")
	if mutate != nil {
		mutate(task)
	}
	created, err := s.CreateTask(ctx, *task)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if _, err := s.UpdateTaskStatus(ctx, created.ID, models.StatusInProgress, "agent-1", ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	completed, err := s.UpdateTaskStatus(ctx, created.ID, models.StatusCompleted, "agent-1", "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return completed
}

func TestRequirementFor_Resolution(t *testing.T) {
	rules := []models.SignOffRequirement{
		{TaskType: models.TypeFeature, FeatureArea: "auth", RequiredAgents: []string{"qa", "security"}, MinApprovals: 2},
		{TaskType: models.TypeFeature, FeatureArea: "*", RequiredAgents: []string{"qa"}, MinApprovals: 1},
	}
	coord, _ := setupCoordinator(t, rules)

	tests := []struct {
		name       string
		task       models.Task
		wantAgents int
	}{
		{
			name:       "exact match wins",
			task:       models.Task{Type: models.TypeFeature, FeatureArea: "auth"},
			wantAgents: 2,
		},
		{
			name:       "wildcard fallback",
			task:       models.Task{Type: models.TypeFeature, FeatureArea: "billing"},
			wantAgents: 1,
		},
		{
			name:       "default when nothing matches",
			task:       models.Task{Type: models.TypeBugFix, FeatureArea: "auth"},
			wantAgents: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := coord.RequirementFor(tt.task)
			if len(req.RequiredAgents) != tt.wantAgents {
				t.Errorf("RequiredAgents = %v, want %d agents", req.RequiredAgents, tt.wantAgents)
			}
		})
	}

	// The default reviewer is qa with a single approval.
	req := coord.RequirementFor(models.Task{Type: models.TypeRefactor})
	if req.RequiredAgents[0] != DefaultReviewer || req.MinApprovals != 1 {
		t.Errorf("default requirement = %+v", req)
	}
}

func TestRecordDecision_UnanimousConsensus(t *testing.T) {
	rules := []models.SignOffRequirement{
		{TaskType: models.TypeFeature, FeatureArea: "*", RequiredAgents: []string{"qa", "security", "lead"}, MinApprovals: 3},
	}
	coord, s := setupCoordinator(t, rules)
	ctx := context.Background()

	task := createCompletedTask(t, s, nil)
	if err := coord.TriggerReview(ctx, task); err != nil {
		t.Fatalf("TriggerReview failed: %v", err)
	}

	approve := func(agent string) {
		t.Helper()
		if err := coord.RecordDecision(ctx, task.ID, agent, models.DecisionApprove); err != nil {
			t.Fatalf("approve by %s failed: %v", agent, err)
		}
	}

	approve("qa")
	approve("security")
	if ok, err := coord.ConsensusReached(ctx, task); err != nil || ok {
		t.Fatalf("consensus with 2 of 3 approvals: ok=%v err=%v", ok, err)
	}

	approve("lead")
	if ok, err := coord.ConsensusReached(ctx, task); err != nil || !ok {
		t.Fatalf("consensus with 3 of 3 approvals: ok=%v err=%v", ok, err)
	}
}

func TestRecordDecision_RejectRevertsAndRetainsApprovals(t *testing.T) {
	rules := []models.SignOffRequirement{
		{TaskType: models.TypeFeature, FeatureArea: "*", RequiredAgents: []string{"qa", "security", "lead"}, MinApprovals: 3},
	}
	coord, s := setupCoordinator(t, rules)
	ctx := context.Background()

	task := createCompletedTask(t, s, nil)
	if err := coord.TriggerReview(ctx, task); err != nil {
		t.Fatalf("TriggerReview failed: %v", err)
	}

	if err := coord.RecordDecision(ctx, task.ID, "qa", models.DecisionApprove); err != nil {
		t.Fatalf("qa approve: %v", err)
	}
	if err := coord.RecordDecision(ctx, task.ID, "security", models.DecisionApprove); err != nil {
		t.Fatalf("security approve: %v", err)
	}
	if err := coord.RecordDecision(ctx, task.ID, "lead", models.DecisionReject); err != nil {
		t.Fatalf("lead reject: %v", err)
	}

	// The rejection reverts the task for rework.
	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != models.StatusInProgress {
		t.Errorf("status after reject = %s, want in_progress", got.Status)
	}

	// Prior approvals survive; only the rejecting agent must re-review.
	approved, required, err := coord.ReviewStatus(ctx, got)
	if err != nil {
		t.Fatalf("ReviewStatus failed: %v", err)
	}
	if approved != 2 || required != 3 {
		t.Errorf("ReviewStatus = %d/%d, want 2/3", approved, required)
	}

	// Rework completes and the rejecting agent approves.
	if _, err := s.UpdateTaskStatus(ctx, task.ID, models.StatusCompleted, "agent-1", "rework done"); err != nil {
		t.Fatalf("re-complete: %v", err)
	}
	if err := coord.RecordDecision(ctx, task.ID, "lead", models.DecisionApprove); err != nil {
		t.Fatalf("lead re-approve: %v", err)
	}
	if ok, err := coord.ConsensusReached(ctx, got); err != nil || !ok {
		t.Fatalf("consensus after re-review: ok=%v err=%v", ok, err)
	}
}

func TestRecordDecision_SecondRejectIsNotAnError(t *testing.T) {
	rules := []models.SignOffRequirement{
		{TaskType: models.TypeFeature, FeatureArea: "*", RequiredAgents: []string{"qa", "security"}, MinApprovals: 2},
	}
	coord, s := setupCoordinator(t, rules)
	ctx := context.Background()

	task := createCompletedTask(t, s, nil)
	if err := coord.TriggerReview(ctx, task); err != nil {
		t.Fatalf("TriggerReview failed: %v", err)
	}

	// The first reject reverts the task; the second finds it already
	// reverted and must still record cleanly.
	if err := coord.RecordDecision(ctx, task.ID, "qa", models.DecisionReject); err != nil {
		t.Fatalf("first reject: %v", err)
	}
	if err := coord.RecordDecision(ctx, task.ID, "security", models.DecisionReject); err != nil {
		t.Fatalf("second reject: %v", err)
	}

	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != models.StatusInProgress {
		t.Errorf("status after double reject = %s, want in_progress", got.Status)
	}

	// Both verdicts are on record.
	latest, err := s.LatestSignOffs(ctx, task.ID)
	if err != nil {
		t.Fatalf("LatestSignOffs failed: %v", err)
	}
	for _, agent := range []string{"qa", "security"} {
		so, ok := latest[agent]
		if !ok || so.Decision != models.DecisionReject {
			t.Errorf("latest[%s] = %+v, want a reject", agent, latest[agent])
		}
	}
}

func TestRecordDecision_Validation(t *testing.T) {
	coord, s := setupCoordinator(t, nil)
	ctx := context.Background()

	task := createCompletedTask(t, s, nil)

	// Only approve and reject are recordable verdicts.
	if err := coord.RecordDecision(ctx, task.ID, "qa", models.DecisionPending); err == nil {
		t.Error("pending should not be recordable")
	}

	// An agent outside the required set is refused.
	err := coord.RecordDecision(ctx, task.ID, "random-agent", models.DecisionApprove)
	if err == nil {
		t.Fatal("non-required agent should be refused")
	}
	if types.ExitCode(err) != types.ExitValidation {
		t.Errorf("expected validation exit code, got %d (%v)", types.ExitCode(err), err)
	}

	// Unknown task ids surface as not found.
	err = coord.RecordDecision(ctx, uuid.New().String(), "qa", models.DecisionApprove)
	if types.ExitCode(err) != types.ExitNotFound {
		t.Errorf("expected not-found exit code, got %d (%v)", types.ExitCode(err), err)
	}
}

func TestRecordDecision_AppearsInAuditTrail(t *testing.T) {
	coord, s := setupCoordinator(t, nil)
	ctx := context.Background()

	task := createCompletedTask(t, s, nil)
	if err := coord.RecordDecision(ctx, task.ID, DefaultReviewer, models.DecisionApprove); err != nil {
		t.Fatalf("approve: %v", err)
	}

	entries, err := s.ListLog(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListLog failed: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Action == models.ActionVerification && e.Actor == DefaultReviewer {
			found = true
		}
	}
	if !found {
		t.Error("sign-off decision should land in the execution log")
	}
}
