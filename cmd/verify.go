/*
Copyright © 2026 TradeOps Engineering
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/types"
)

// verifyCmd records a verification result against a task.
var verifyCmd = &cobra.Command{
	Use:   "verify <task-id>",
	Short: "Record a verification result for a task",
	Long: `Record a pass/fail verification with optional test results and user
feedback. A failed verification, or feedback of rejected, work_again,
or needs_changes, opens an issue on the task and reverts it to
in_progress for rework.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var (
	verifyPassed   bool
	verifyFailed   bool
	verifyBy       string
	verifyNotes    string
	verifyFeedback string
	verifyComments string
	verifyResults  []string
)

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().BoolVar(&verifyPassed, "passed", false, "mark the verification as passed")
	verifyCmd.Flags().BoolVar(&verifyFailed, "failed", false, "mark the verification as failed")
	verifyCmd.Flags().StringVar(&verifyBy, "by", models.ActorUser, "who performed the verification")
	verifyCmd.Flags().StringVarP(&verifyNotes, "notes", "n", "", "verification notes")
	verifyCmd.Flags().StringVar(&verifyFeedback, "feedback", "", "user feedback (approved|rejected|work_again|needs_changes)")
	verifyCmd.Flags().StringVar(&verifyComments, "comments", "", "free-form user comments")
	verifyCmd.Flags().StringArrayVar(&verifyResults, "result", nil, "test suite result as name=outcome (repeatable)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	if verifyPassed == verifyFailed {
		return types.ValidationError("exactly one of --passed or --failed is required")
	}

	results := make(map[string]string, len(verifyResults))
	for _, r := range verifyResults {
		name, outcome, ok := strings.Cut(r, "=")
		if !ok || name == "" {
			return types.ValidationError("invalid --result %q: expected name=outcome", r)
		}
		results[name] = outcome
	}

	ctx := cmd.Context()
	s, err := GetStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	task, err := resolveTask(ctx, s, args[0])
	if err != nil {
		return err
	}

	v := models.Verification{
		TaskID:       task.ID,
		VerifiedBy:   verifyBy,
		Passed:       verifyPassed,
		Notes:        verifyNotes,
		TestResults:  results,
		UserFeedback: models.UserFeedback(verifyFeedback),
		UserComments: verifyComments,
	}
	if err := models.ValidateStruct(v); err != nil {
		return types.ValidationError("invalid verification: %v", err)
	}

	if err := s.RecordVerification(ctx, v); err != nil {
		return err
	}

	if v.Negative() {
		// Reopen the task so work continues before another attempt.
		if task.Status == models.StatusCompleted {
			if _, err := s.UpdateTaskStatus(ctx, task.ID, models.StatusInProgress, verifyBy, "verification opened an issue"); err != nil {
				return err
			}
		}
		open, err := s.OpenIssueCount(ctx, task.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Verification recorded for %s: issue opened (%d open)\n", shortID(task.ID), open)
		return nil
	}

	fmt.Printf("Verification recorded for %s: passed\n", shortID(task.ID))
	return nil
}
