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

	"github.com/tradeops/taskforge/internal/metrics"
	"github.com/tradeops/taskforge/models"
)

// metricsCmd prints aggregate progress across the task population.
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show task counts, feature progress, and agent workload",
	RunE:  runMetrics,
}

var metricsJSON bool

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "output as JSON")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := GetStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	sum, err := metrics.Collect(ctx, s)
	if err != nil {
		return err
	}

	if metricsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}

	fmt.Printf("Tasks: %d total\n", sum.TotalTasks)
	for _, st := range []models.TaskStatus{
		models.StatusPending, models.StatusInProgress, models.StatusBlocked,
		models.StatusCompleted, models.StatusQAApproved, models.StatusFailed,
		models.StatusCancelled,
	} {
		if n := sum.ByStatus[st]; n > 0 {
			fmt.Printf("  %-12s %d\n", st, n)
		}
	}

	capped, spent, err := s.BudgetTotals(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Budget: $%.2f spent, $%.2f reserved-or-spent (limit $%.2f)\n",
		spent, capped, GlobalAppConfig.Scheduler.BudgetLimit)

	if len(sum.Features) > 0 {
		fmt.Println("\nFeature progress:")
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "  AREA\tDONE\tTOTAL\tPROGRESS")
		for _, fp := range sum.Features {
			fmt.Fprintf(w, "  %s\t%d\t%d\t%.0f%%\n", fp.FeatureArea, fp.Done, fp.Total, fp.Percent)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(sum.Agents) > 0 {
		fmt.Println("\nAgent workload:")
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "  AGENT\tOPEN\tTOTAL")
		for _, al := range sum.Agents {
			fmt.Fprintf(w, "  %s\t%d\t%d\n", al.Agent, al.Open, al.Total)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}
