/*
Copyright © 2026 TradeOps Engineering
*/
package cmd

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradeops/taskforge/internal/policy"
	"github.com/tradeops/taskforge/internal/scheduler"
)

// runCmd starts the autonomous scheduling loop.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the autonomous scheduler until interrupted or a limit is hit",
	Long: `Run claims eligible pending tasks in priority order and dispatches
them to the workers configured in the routing policy. The loop stops on
SIGINT/SIGTERM, when the budget ceiling is reached, or, with
--until-idle, when the queue drains. Rate-limit exhaustion pauses the
loop until a claim token frees.`,
	RunE: runScheduler,
}

var runUntilIdle bool

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runUntilIdle, "until-idle", false, "exit once no eligible tasks remain")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := GetStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	coord, res, pol, err := buildEngine(s)
	if err != nil {
		return err
	}
	registry := scheduler.RegistryFromRouting(pol.Routing)

	sched := GetConfig().Scheduler
	loop := scheduler.NewLoop(s, res, coord, registry, scheduler.Config{
		MaxTasksPerHour:      sched.MaxTasksPerHour,
		BudgetLimit:          sched.BudgetLimit,
		CostPerTask:          sched.CostPerTask,
		Concurrency:          sched.Concurrency,
		PollInterval:         time.Duration(sched.PollIntervalSeconds) * time.Second,
		ExcludedFeatureAreas: sched.ExcludedFeatureAreas,
		ExitWhenIdle:         runUntilIdle,
	})

	// A policy file gets hot-reloaded so reviewer and routing changes
	// apply without restarting the loop.
	if path := GetConfig().Policy.File; path != "" {
		watcher, err := policy.NewWatcher(path,
			func(p policy.Policy) {
				coord.SetRules(p.SignOffs)
				registry.Replace(workerTable(p))
				log.Printf("INFO: policy reloaded from %s", path)
			},
			func(err error) {
				log.Printf("WARNING: policy reload: %v", err)
			})
		if err != nil {
			return fmt.Errorf("failed to watch policy file %s: %w", path, err)
		}
		defer func() { _ = watcher.Close() }()
		go watcher.Run(ctx)
	}

	LogVerbose(fmt.Sprintf("scheduler starting: %d/hour, budget $%.2f, concurrency %d",
		sched.MaxTasksPerHour, sched.BudgetLimit, sched.Concurrency), nil)

	stats, err := loop.Run(ctx)
	printRunStats(stats)
	return err
}

func workerTable(p policy.Policy) map[string]scheduler.Worker {
	table := make(map[string]scheduler.Worker, len(p.Routing))
	for _, rule := range p.Routing {
		table[rule.Capability] = scheduler.NewCommandWorker(rule.Capability, rule.Command)
	}
	return table
}

func printRunStats(st scheduler.Stats) {
	fmt.Printf("\nRun finished: %s\n", st.StopReason)
	fmt.Printf("  claimed    %d\n", st.Claimed)
	fmt.Printf("  completed  %d\n", st.Completed)
	fmt.Printf("  failed     %d\n", st.Failed)
	if st.RateDeferrals > 0 {
		fmt.Printf("  rate pauses %d\n", st.RateDeferrals)
	}
	if st.TotalCost > 0 {
		fmt.Printf("  spend      $%.2f\n", st.TotalCost)
	}
	if st.LastSuccessfulTask != "" {
		fmt.Printf("  last task  %s\n", shortID(st.LastSuccessfulTask))
	}
}
