package store

import (
	"context"
	"testing"

	"github.com/tradeops/taskforge/models"
)

func TestRecordVerification_HistoryAndLog(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	task := mustCreateTask(t, s, nil)

	if err := s.RecordVerification(ctx, models.Verification{
		TaskID:      task.ID,
		VerifiedBy:  "qa",
		Passed:      true,
		Notes:       "all suites green",
		TestResults: map[string]string{"unit": "pass", "e2e": "pass"},
	}); err != nil {
		t.Fatalf("RecordVerification failed: %v", err)
	}

	list, err := s.ListVerifications(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListVerifications failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 verification, got %d", len(list))
	}
	if list[0].TestResults["unit"] != "pass" {
		t.Errorf("TestResults = %v, want unit pass", list[0].TestResults)
	}

	// The verification lands in the execution log too.
	entries, err := s.ListLog(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListLog failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != models.ActionVerification {
		t.Errorf("expected one verification log entry, got %v", entries)
	}
}

func TestOpenIssueCount(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	task := mustCreateTask(t, s, nil)

	record := func(passed bool, feedback models.UserFeedback) {
		t.Helper()
		if err := s.RecordVerification(ctx, models.Verification{
			TaskID:       task.ID,
			VerifiedBy:   "qa",
			Passed:       passed,
			UserFeedback: feedback,
		}); err != nil {
			t.Fatalf("RecordVerification failed: %v", err)
		}
	}
	assertOpen := func(want int) {
		t.Helper()
		open, err := s.OpenIssueCount(ctx, task.ID)
		if err != nil {
			t.Fatalf("OpenIssueCount failed: %v", err)
		}
		if open != want {
			t.Errorf("open issues = %d, want %d", open, want)
		}
	}

	assertOpen(0)

	record(false, "")
	assertOpen(1)

	// A pass with negative feedback still counts as an open issue.
	record(true, models.FeedbackNeedsChanges)
	assertOpen(2)

	// A clean pass resolves everything before it.
	record(true, models.FeedbackApproved)
	assertOpen(0)
}
