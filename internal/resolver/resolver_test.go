package resolver

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tradeops/taskforge/internal/signoff"
	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/store"
)

func setupResolver(t *testing.T, rules []models.SignOffRequirement) (*Resolver, *signoff.Coordinator, *store.SQLiteStore) {
	t.Helper()

	s, err := store.NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	coord := signoff.NewCoordinator(s, rules)
	return New(s, coord), coord, s
}

func createTask(t *testing.T, s *store.SQLiteStore, mutate func(*models.Task)) models.Task {
	t.Helper()

	task := models.NewTask(uuid.New().String(), "Resolver Test Task")
	if mutate != nil {
		mutate(task)
	}
	created, err := s.CreateTask(context.Background(), *task)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	return created
}

func complete(t *testing.T, s *store.SQLiteStore, id string) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.UpdateTaskStatus(ctx, id, models.StatusInProgress, "agent-1", ""); err != nil {
		t.Fatalf("start %s: %v", id, err)
	}
	if _, err := s.UpdateTaskStatus(ctx, id, models.StatusCompleted, "agent-1", ""); err != nil {
		t.Fatalf("complete %s: %v", id, err)
	}
}

func TestEligibleToRun(t *testing.T) {
	r, _, s := setupResolver(t, nil)
	ctx := context.Background()

	dep := createTask(t, s, nil)
	task := createTask(t, s, func(task *models.Task) {
		task.Dependencies = []string{dep.ID}
	})
	free := createTask(t, s, nil)

	if ok, err := r.EligibleToRun(ctx, free); err != nil || !ok {
		t.Errorf("task without dependencies should be eligible: ok=%v err=%v", ok, err)
	}
	if ok, err := r.EligibleToRun(ctx, task); err != nil || ok {
		t.Errorf("task with pending dependency should not be eligible: ok=%v err=%v", ok, err)
	}

	complete(t, s, dep.ID)
	if ok, err := r.EligibleToRun(ctx, task); err != nil || !ok {
		t.Errorf("task should be eligible after dependency completes: ok=%v err=%v", ok, err)
	}
}

// Full lifecycle: claim, complete, two approvals, finalize. The
// execution log must read back as exactly that story, in order.
func TestFinalizeLifecycle_AuditTrail(t *testing.T) {
	rules := []models.SignOffRequirement{
		{TaskType: models.TypeFeature, FeatureArea: "*", RequiredAgents: []string{"qa", "security"}, MinApprovals: 2},
	}
	r, coord, s := setupResolver(t, rules)
	ctx := context.Background()

	task := createTask(t, s, nil)
	if _, err := s.ClaimTask(ctx, task.ID, "scheduler", 0); err != nil {
		t.Fatalf("ClaimTask failed: %v", err)
	}
	if _, err := s.UpdateTaskStatus(ctx, task.ID, models.StatusCompleted, "agent-1", ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := coord.TriggerReview(ctx, task); err != nil {
		t.Fatalf("TriggerReview failed: %v", err)
	}
	for _, agent := range []string{"qa", "security"} {
		if err := coord.RecordDecision(ctx, task.ID, agent, models.DecisionApprove); err != nil {
			t.Fatalf("%s approve: %v", agent, err)
		}
	}

	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	ok, reason, err := r.EligibleToFinalize(ctx, got)
	if err != nil {
		t.Fatalf("EligibleToFinalize failed: %v", err)
	}
	if !ok {
		t.Fatalf("not eligible to finalize: %q", reason)
	}
	final, err := s.UpdateTaskStatus(ctx, task.ID, models.StatusQAApproved, "operator", "all gates passed")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Status != models.StatusQAApproved {
		t.Fatalf("status after finalize = %s, want qa_approved", final.Status)
	}

	entries, err := s.ListLog(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListLog failed: %v", err)
	}
	want := []models.LogAction{
		models.ActionStarted,
		models.ActionCompleted,
		models.ActionVerification,
		models.ActionVerification,
		models.ActionVerification,
	}
	if len(entries) != len(want) {
		t.Fatalf("log has %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, e := range entries {
		if e.Action != want[i] {
			t.Errorf("log[%d].Action = %s, want %s", i, e.Action, want[i])
		}
	}
}

func TestEligibleToFinalize_Gates(t *testing.T) {
	rules := []models.SignOffRequirement{
		{TaskType: models.TypeFeature, FeatureArea: "*", RequiredAgents: []string{"qa", "security"}, MinApprovals: 2},
	}
	r, coord, s := setupResolver(t, rules)
	ctx := context.Background()

	dep := createTask(t, s, nil)
	task := createTask(t, s, func(task *models.Task) {
		task.Dependencies = []string{dep.ID}
	})

	// Gate 1: dependencies.
	ok, reason, err := r.EligibleToFinalize(ctx, task)
	if err != nil {
		t.Fatalf("EligibleToFinalize failed: %v", err)
	}
	if ok || !strings.Contains(reason, "dependencies pending") {
		t.Errorf("expected dependency gate, got ok=%v reason=%q", ok, reason)
	}

	complete(t, s, dep.ID)
	complete(t, s, task.ID)

	// Gate 2: sign-off consensus. One of two approvals in hand.
	if err := coord.RecordDecision(ctx, task.ID, "qa", models.DecisionApprove); err != nil {
		t.Fatalf("qa approve: %v", err)
	}
	ok, reason, err = r.EligibleToFinalize(ctx, task)
	if err != nil {
		t.Fatalf("EligibleToFinalize failed: %v", err)
	}
	if ok || reason != "1 sign-offs pending" {
		t.Errorf("expected sign-off gate, got ok=%v reason=%q", ok, reason)
	}

	if err := coord.RecordDecision(ctx, task.ID, "security", models.DecisionApprove); err != nil {
		t.Fatalf("security approve: %v", err)
	}

	// Gate 3: open verification issues.
	if err := s.RecordVerification(ctx, models.Verification{
		TaskID:     task.ID,
		VerifiedBy: "qa",
		Passed:     false,
		Notes:      "regression in checkout",
	}); err != nil {
		t.Fatalf("RecordVerification failed: %v", err)
	}
	ok, reason, err = r.EligibleToFinalize(ctx, task)
	if err != nil {
		t.Fatalf("EligibleToFinalize failed: %v", err)
	}
	if ok || !strings.Contains(reason, "open verification issues") {
		t.Errorf("expected verification gate, got ok=%v reason=%q", ok, reason)
	}

	// A clean pass clears the gate.
	if err := s.RecordVerification(ctx, models.Verification{
		TaskID:     task.ID,
		VerifiedBy: "qa",
		Passed:     true,
	}); err != nil {
		t.Fatalf("RecordVerification failed: %v", err)
	}
	ok, reason, err = r.EligibleToFinalize(ctx, task)
	if err != nil {
		t.Fatalf("EligibleToFinalize failed: %v", err)
	}
	if !ok {
		t.Errorf("all gates met but not eligible: reason=%q", reason)
	}
}
