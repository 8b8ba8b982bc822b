/*
Copyright © 2026 TradeOps Engineering
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/types"
)

// finalizeCmd promotes a completed task to qa_approved once every gate holds.
var finalizeCmd = &cobra.Command{
	Use:   "finalize <task-id>",
	Short: "Promote a consensus-approved task to qa_approved",
	Long: `Finalize checks every gate before promoting: the task must be
completed, all dependencies must be satisfied, sign-off consensus must
be reached, and no verification issues may be open. The first gate that
fails is reported and the command exits with a precondition error.`,
	Args: cobra.ExactArgs(1),
	RunE: runFinalize,
}

var finalizeActor string

func init() {
	rootCmd.AddCommand(finalizeCmd)
	finalizeCmd.Flags().StringVar(&finalizeActor, "actor", models.ActorUser, "actor recorded in the execution log")
}

func runFinalize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := GetStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	_, res, _, err := buildEngine(s)
	if err != nil {
		return err
	}

	task, err := resolveTask(ctx, s, args[0])
	if err != nil {
		return err
	}

	ok, reason, err := res.EligibleToFinalize(ctx, task)
	if err != nil {
		return err
	}
	if !ok {
		return types.PreconditionError("cannot finalize %s: %s", shortID(task.ID), reason)
	}

	if _, err := s.UpdateTaskStatus(ctx, task.ID, models.StatusQAApproved, finalizeActor, "all gates passed"); err != nil {
		return err
	}
	fmt.Printf("Task %s finalized: qa_approved\n", shortID(task.ID))
	return nil
}
