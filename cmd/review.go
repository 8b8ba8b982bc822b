/*
Copyright © 2026 TradeOps Engineering
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradeops/taskforge/models"
)

// reviewCmd groups the sign-off operations.
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage QA sign-offs for a task",
}

// reviewTriggerCmd opens a review round.
var reviewTriggerCmd = &cobra.Command{
	Use:   "trigger <task-id>",
	Short: "Open a review round, creating pending sign-offs for required reviewers",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewTrigger,
}

var reviewAgent string

// reviewDecideCmd records a reviewer decision.
var reviewDecideCmd = &cobra.Command{
	Use:   "decide <task-id> <approve|reject>",
	Short: "Record a reviewer's decision",
	Long: `Record an approve or reject from a required reviewer. A reject is a
protocol side effect: the task reverts to in_progress and the agent
must re-review after rework. Prior approvals from other reviewers are
retained.`,
	Args: cobra.ExactArgs(2),
	RunE: runReviewDecide,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewTriggerCmd)
	reviewCmd.AddCommand(reviewDecideCmd)

	reviewDecideCmd.Flags().StringVar(&reviewAgent, "agent", "", "reviewing agent (required)")
	_ = reviewDecideCmd.MarkFlagRequired("agent")
}

func runReviewTrigger(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := GetStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	coord, _, _, err := buildEngine(s)
	if err != nil {
		return err
	}

	task, err := resolveTask(ctx, s, args[0])
	if err != nil {
		return err
	}

	if err := coord.TriggerReview(ctx, task); err != nil {
		return err
	}
	req := coord.RequirementFor(task)
	fmt.Printf("Review opened for %s: %d reviewer(s), %d approval(s) required\n",
		shortID(task.ID), len(req.RequiredAgents), req.MinApprovals)
	return nil
}

func runReviewDecide(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := GetStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	coord, _, _, err := buildEngine(s)
	if err != nil {
		return err
	}

	task, err := resolveTask(ctx, s, args[0])
	if err != nil {
		return err
	}
	decision := models.SignOffDecision(args[1])

	if err := coord.RecordDecision(ctx, task.ID, reviewAgent, decision); err != nil {
		return err
	}

	approved, required, err := coord.ReviewStatus(ctx, task)
	if err != nil {
		return err
	}
	fmt.Printf("Recorded %s from %s on %s (%d/%d approvals)\n",
		decision, reviewAgent, shortID(task.ID), approved, required)
	return nil
}
