/*
Copyright © 2026 TradeOps Engineering
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelReason string

// cancelCmd cancels a non-terminal task.
var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a task",
	Long: `Cancel a task that has not reached a terminal state. The task record
is kept: cancellation is a status transition, never a deletion, so the
audit trail stays intact. Completed dependency effects of other tasks
are not rolled back.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)

	cancelCmd.Flags().StringVarP(&cancelReason, "reason", "r", "cancelled by operator", "reason recorded in the execution log")
}

func runCancel(cmd *cobra.Command, args []string) error {
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

	if _, err := s.CancelTask(ctx, task.ID, cancelReason); err != nil {
		return err
	}

	fmt.Printf("Cancelled task %s\n", shortID(task.ID))
	return nil
}
