/*
Copyright © 2026 TradeOps Engineering
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tradeops/taskforge/internal/taskutil"
	"github.com/tradeops/taskforge/store"
)

var (
	listStatus   string
	listPriority string
	listArea     string
	listAgent    string
	listTag      string
	listJSON     bool
)

// listCmd lists tasks with filters.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks ordered by priority (critical first), then creation time.
Filters combine with AND. --json emits machine-readable output for
agent consumption.`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	listCmd.Flags().StringVar(&listPriority, "priority", "", "filter by priority")
	listCmd.Flags().StringVar(&listArea, "area", "", "filter by feature area")
	listCmd.Flags().StringVar(&listAgent, "agent", "", "filter by assigned agent")
	listCmd.Flags().StringVar(&listTag, "tag", "", "filter by tag")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := GetStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	status, err := taskutil.NormalizeStatus(listStatus)
	if err != nil {
		return err
	}
	priority, err := taskutil.NormalizePriority(listPriority)
	if err != nil {
		return err
	}

	tasks, err := s.ListTasks(ctx, store.TaskFilter{
		Status:        status,
		Priority:      priority,
		FeatureArea:   listArea,
		AssignedAgent: listAgent,
		Tag:           listTag,
	})
	if err != nil {
		return err
	}

	if listJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTYPE\tPRIORITY\tSTATUS\tAREA\tAGENT\tDEPS")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			shortID(t.ID), truncate(t.Title, 40), t.Type, t.Priority, t.Status,
			t.FeatureArea, t.AssignedAgent, len(t.Dependencies))
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
