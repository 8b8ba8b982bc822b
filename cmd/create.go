/*
Copyright © 2026 TradeOps Engineering
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tradeops/taskforge/internal/taskutil"
	"github.com/tradeops/taskforge/models"
)

var (
	createDescription string
	createType        string
	createPriority    string
	createArea        string
	createAgent       string
	createDuration    time.Duration
	createTags        []string
	createDeps        []string
)

// createCmd creates a new task.
var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new task",
	Long: `Create a task in the orchestration engine. Dependencies must reference
existing task ids and may not form a cycle. Discovery agents use the
same path: there is no privileged creation route.

Examples:
  taskforge create "Wire options scoring into the dashboard" --type feature --area options --agent backend
  taskforge create "Fix stale quote cache" --type bug_fix --priority critical --depends a1b2...`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "task description")
	createCmd.Flags().StringVarP(&createType, "type", "t", string(models.TypeFeature), "task type (feature, bug_fix, enhancement, qa, refactor, documentation, investigation)")
	createCmd.Flags().StringVarP(&createPriority, "priority", "p", string(models.PriorityMedium), "priority (critical, high, medium, low)")
	createCmd.Flags().StringVar(&createArea, "area", "", "feature area")
	createCmd.Flags().StringVar(&createAgent, "agent", "", "assigned agent capability tag")
	createCmd.Flags().DurationVar(&createDuration, "duration", 0, "estimated duration (e.g. 90m, 4h)")
	createCmd.Flags().StringSliceVar(&createTags, "tag", nil, "tags (repeatable)")
	createCmd.Flags().StringSliceVar(&createDeps, "depends", nil, "dependency task ids (repeatable)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := GetStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	taskType, err := taskutil.NormalizeType(createType)
	if err != nil {
		return err
	}
	priority, err := taskutil.NormalizePriority(createPriority)
	if err != nil {
		return err
	}

	task := models.NewTask(uuid.NewString(), args[0])
	task.Description = createDescription
	task.Type = taskType
	task.Priority = priority
	task.FeatureArea = createArea
	task.AssignedAgent = createAgent
	task.EstimatedDuration = createDuration
	if len(createTags) > 0 {
		task.Tags = createTags
	}
	if len(createDeps) > 0 {
		task.Dependencies = createDeps
	}

	created, err := s.CreateTask(ctx, *task)
	if err != nil {
		return err
	}

	fmt.Printf("Created task %s (%s, %s)\n", created.ID, created.Type, created.Priority)
	return nil
}
