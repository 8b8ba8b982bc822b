/*
Copyright © 2026 TradeOps Engineering
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// showCmd prints a task with its audit trail.
var showCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task, its sign-offs, verifications, and execution log",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Task:        %s\n", task.ID)
	fmt.Printf("Title:       %s\n", task.Title)
	if task.Description != "" {
		fmt.Printf("Description: %s\n", task.Description)
	}
	fmt.Printf("Type:        %s\n", task.Type)
	fmt.Printf("Priority:    %s\n", task.Priority)
	fmt.Printf("Status:      %s\n", task.Status)
	if task.AssignedAgent != "" {
		fmt.Printf("Agent:       %s\n", task.AssignedAgent)
	}
	if task.FeatureArea != "" {
		fmt.Printf("Area:        %s\n", task.FeatureArea)
	}
	if len(task.Tags) > 0 {
		fmt.Printf("Tags:        %s\n", strings.Join(task.Tags, ", "))
	}
	if len(task.Dependencies) > 0 {
		fmt.Printf("Depends on:  %s\n", strings.Join(task.Dependencies, ", "))
	}
	if task.EstimatedDuration > 0 {
		fmt.Printf("Estimate:    %s\n", task.EstimatedDuration)
	}
	fmt.Printf("Created:     %s\n", task.CreatedAt.Format("2006-01-02 15:04:05"))
	if task.StartedAt != nil {
		fmt.Printf("Started:     %s\n", task.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if task.CompletedAt != nil {
		fmt.Printf("Completed:   %s\n", task.CompletedAt.Format("2006-01-02 15:04:05"))
	}

	signoffs, err := s.ListSignOffs(ctx, task.ID)
	if err != nil {
		return err
	}
	if len(signoffs) > 0 {
		fmt.Println("\nSign-offs:")
		for _, so := range signoffs {
			final := ""
			if so.IsFinal {
				final = " (final)"
			}
			fmt.Printf("  %s  %-10s %s%s\n", so.Timestamp.Format("2006-01-02 15:04:05"), so.Decision, so.Agent, final)
		}
	}

	verifications, err := s.ListVerifications(ctx, task.ID)
	if err != nil {
		return err
	}
	if len(verifications) > 0 {
		fmt.Println("\nVerifications:")
		for _, v := range verifications {
			outcome := "PASS"
			if !v.Passed {
				outcome = "FAIL"
			}
			line := fmt.Sprintf("  %s  %s by %s", v.CreatedAt.Format("2006-01-02 15:04:05"), outcome, v.VerifiedBy)
			if v.UserFeedback != "" {
				line += fmt.Sprintf(" [user: %s]", v.UserFeedback)
			}
			fmt.Println(line)
		}
	}

	entries, err := s.ListLog(ctx, task.ID)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		fmt.Println("\nExecution log:")
		for _, e := range entries {
			line := fmt.Sprintf("  %s  %-12s %-10s %s", e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.Actor, e.Message)
			if e.ErrorDetail != "" && e.ErrorDetail != e.Message {
				line += " | " + e.ErrorDetail
			}
			fmt.Println(line)
		}
	}

	return nil
}
