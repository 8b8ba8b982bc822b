/*
Copyright © 2026 TradeOps Engineering
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradeops/taskforge/internal/taskutil"
	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/types"
)

var (
	statusReason string
	statusForce  bool
)

// statusCmd updates a task's status.
var statusCmd = &cobra.Command{
	Use:   "status <task-id> <new-status>",
	Short: "Update a task's status",
	Long: `Move a task through its state machine. Regular updates honor the
transition table; --force applies an operator override (still refusing
to disturb terminal tasks) and requires a --reason for the audit log.`,
	Args: cobra.ExactArgs(2),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusReason, "reason", "r", "", "reason recorded in the execution log")
	statusCmd.Flags().BoolVar(&statusForce, "force", false, "bypass the transition table (operator override)")
}

func runStatus(cmd *cobra.Command, args []string) error {
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
	newStatus, err := taskutil.NormalizeStatus(args[1])
	if err != nil {
		return err
	}

	var updated models.Task
	if statusForce {
		if statusReason == "" {
			return types.ValidationError("--force requires --reason")
		}
		updated, err = s.ForceTaskStatus(ctx, task.ID, newStatus, statusReason)
	} else {
		msg := statusReason
		if msg == "" {
			msg = "status updated by operator"
		}
		updated, err = s.UpdateTaskStatus(ctx, task.ID, newStatus, models.ActorUser, msg)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Task %s is now %s\n", shortID(updated.ID), updated.Status)
	return nil
}
