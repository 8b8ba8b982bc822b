package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tradeops/taskforge/internal/resolver"
	"github.com/tradeops/taskforge/internal/signoff"
	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/store"
	"github.com/tradeops/taskforge/types"
)

// SchedulerActor identifies loop-initiated log entries.
const SchedulerActor = "scheduler"

// Ranker supplies the secondary ordering score used after priority
// (complexity estimation, AI ranking). Higher runs first. A nil ranker
// falls back to creation order.
type Ranker interface {
	Rank(task models.Task) float64
}

// Config holds the loop's operating limits.
type Config struct {
	MaxTasksPerHour      int
	BudgetLimit          float64
	CostPerTask          float64
	Concurrency          int
	PollInterval         time.Duration
	ExcludedFeatureAreas []string
	// ExitWhenIdle stops the loop once the queue drains instead of
	// polling forever.
	ExitWhenIdle bool
}

// Stats summarizes a finished run.
type Stats struct {
	Claimed            int
	Completed          int
	Failed             int
	RateDeferrals      int
	TotalCost          float64
	LastSuccessfulTask string
	StopReason         string
}

// Loop repeatedly claims the highest-priority eligible task and
// dispatches it to a worker. Multiple loops may run concurrently:
// correctness rests on the store's atomic conditional claim, not on
// single-threadedness.
type Loop struct {
	store    store.TaskStore
	resolver *resolver.Resolver
	signoff  *signoff.Coordinator
	registry *Registry
	ranker   Ranker
	cfg      Config

	mu    sync.Mutex
	stats Stats
}

// NewLoop assembles an autonomous loop.
func NewLoop(s store.TaskStore, r *resolver.Resolver, c *signoff.Coordinator, reg *Registry, cfg Config) *Loop {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Loop{store: s, resolver: r, signoff: c, registry: reg, cfg: cfg}
}

// SetRanker installs the secondary ordering score.
func (l *Loop) SetRanker(r Ranker) { l.ranker = r }

// Run executes the scheduling loop until the context is cancelled, the
// budget ceiling is reached, or (with ExitWhenIdle) the queue drains.
// In-flight dispatches are drained before it returns. Budget and rate
// exhaustion are expected stop conditions, not failures.
func (l *Loop) Run(ctx context.Context) (Stats, error) {
	for {
		if err := ctx.Err(); err != nil {
			return l.finish("stopped"), nil
		}

		candidates, err := l.selectCandidates(ctx)
		if err != nil {
			return l.finish("store error"), err
		}

		if len(candidates) == 0 {
			if l.cfg.ExitWhenIdle {
				return l.finish("queue drained"), nil
			}
			if !sleepCtx(ctx, l.cfg.PollInterval) {
				return l.finish("stopped"), nil
			}
			continue
		}

		claimed, stop := l.claimWave(ctx, candidates)

		if len(claimed) > 0 {
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(l.cfg.Concurrency)
			for _, task := range claimed {
				t := task
				g.Go(func() error {
					l.dispatch(gctx, t)
					return nil
				})
			}
			// Workers record their own failures; Wait only drains.
			_ = g.Wait()
		}

		switch stop {
		case stopBudget:
			log.Printf("INFO: budget limit %.2f reached, ending run", l.cfg.BudgetLimit)
			return l.finish("budget limit reached"), nil
		case stopRate:
			l.mu.Lock()
			l.stats.RateDeferrals++
			l.mu.Unlock()
			if !l.sleepForRateWindow(ctx) {
				return l.finish("stopped"), nil
			}
		}
	}
}

type stopSignal int

const (
	stopNone stopSignal = iota
	stopRate
	stopBudget
)

// selectCandidates queries pending tasks, drops excluded feature
// areas, filters on dependency eligibility, and applies the secondary
// ranking within equal priorities.
func (l *Loop) selectCandidates(ctx context.Context) ([]models.Task, error) {
	pending, err := l.store.ListTasks(ctx, store.TaskFilter{Status: models.StatusPending})
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}

	excluded := make(map[string]bool, len(l.cfg.ExcludedFeatureAreas))
	for _, area := range l.cfg.ExcludedFeatureAreas {
		excluded[area] = true
	}

	var eligible []models.Task
	for _, task := range pending {
		if excluded[task.FeatureArea] {
			continue
		}
		ok, err := l.resolver.EligibleToRun(ctx, task)
		if err != nil {
			return nil, err
		}
		if ok {
			eligible = append(eligible, task)
		}
	}

	if l.ranker != nil {
		sort.SliceStable(eligible, func(i, j int) bool {
			pi, pj := models.PriorityRank(eligible[i].Priority), models.PriorityRank(eligible[j].Priority)
			if pi != pj {
				return pi > pj
			}
			return l.ranker.Rank(eligible[i]) > l.ranker.Rank(eligible[j])
		})
	}
	return eligible, nil
}

// claimWave claims as many candidates as the rate and budget caps
// allow. A lost race silently moves to the next candidate; rate or
// budget exhaustion ends the wave.
func (l *Loop) claimWave(ctx context.Context, candidates []models.Task) ([]models.Task, stopSignal) {
	var claimed []models.Task
	for _, task := range candidates {
		if err := ctx.Err(); err != nil {
			return claimed, stopNone
		}

		// Projected-cost check before the claim so a refused task
		// never leaves pending.
		reserved, _, err := l.store.BudgetTotals(ctx)
		if err != nil {
			log.Printf("WARNING: budget totals: %v", err)
			return claimed, stopNone
		}
		if l.cfg.BudgetLimit > 0 && reserved+l.projectedCost(task) > l.cfg.BudgetLimit {
			l.logBudgetRefusal(ctx, task)
			return claimed, stopBudget
		}

		_, err = l.store.ClaimTask(ctx, task.ID, SchedulerActor, l.cfg.MaxTasksPerHour)
		switch {
		case errors.Is(err, types.ErrConcurrencyLost):
			// Another scheduler got it; move on without error.
			continue
		case errors.Is(err, types.ErrRateLimited):
			return claimed, stopRate
		case err != nil:
			log.Printf("WARNING: claim %s: %v", task.ID, err)
			continue
		}

		// Reserve inside the ledger; a concurrent loop may have spent
		// the headroom between the check and here.
		if l.cfg.BudgetLimit > 0 {
			err := l.store.ReserveBudget(ctx, task.ID, l.projectedCost(task), l.cfg.BudgetLimit)
			if errors.Is(err, types.ErrBudgetExceeded) {
				// The claim's rate token stays in the rolling window even
				// though the claim is undone here: the window counts one
				// claim that never dispatched, which only errs toward
				// fewer claims in the hour, never more.
				if _, ferr := l.store.ForceTaskStatus(ctx, task.ID, models.StatusPending, "budget refused before dispatch"); ferr != nil {
					log.Printf("WARNING: return %s to pending: %v", task.ID, ferr)
				}
				return claimed, stopBudget
			}
			if err != nil {
				log.Printf("WARNING: reserve budget for %s: %v", task.ID, err)
				continue
			}
		}

		l.mu.Lock()
		l.stats.Claimed++
		l.mu.Unlock()
		claimed = append(claimed, task)
	}
	return claimed, stopNone
}

func (l *Loop) projectedCost(task models.Task) float64 {
	return l.cfg.CostPerTask
}

func (l *Loop) logBudgetRefusal(ctx context.Context, task models.Task) {
	log.Printf("INFO: task %s refused: projected cost would exceed budget limit %.2f", task.ID, l.cfg.BudgetLimit)
	if err := l.store.AppendLog(ctx, models.ExecutionLogEntry{
		TaskID:  task.ID,
		Actor:   SchedulerActor,
		Action:  models.ActionProgress,
		Message: fmt.Sprintf("dispatch refused: projected cost would exceed budget limit %.2f", l.cfg.BudgetLimit),
	}); err != nil {
		log.Printf("WARNING: log budget refusal for %s: %v", task.ID, err)
	}
}

// dispatch routes one claimed task to its worker and records the
// outcome. A failing worker marks the task failed and never halts the
// loop.
func (l *Loop) dispatch(ctx context.Context, task models.Task) {
	worker, ok := l.registry.Resolve(task.AssignedAgent)
	if !ok {
		l.recordFailure(ctx, task, SchedulerActor,
			fmt.Sprintf("no worker registered for capability %q", task.AssignedAgent), nil)
		return
	}

	started := time.Now()
	result, err := worker.Execute(ctx, task)
	elapsed := time.Since(started)

	if err != nil || !result.Success {
		l.recordFailure(ctx, task, worker.Name(), result.Message, err)
		l.settle(ctx, task, result.Cost)
		return
	}

	l.settle(ctx, task, result.Cost)

	if result.Message != "" || len(result.FilesTouched) > 0 {
		if err := l.store.AppendLog(ctx, models.ExecutionLogEntry{
			TaskID:       task.ID,
			Actor:        worker.Name(),
			Action:       models.ActionProgress,
			Message:      result.Message,
			FilesTouched: result.FilesTouched,
			Duration:     elapsed,
		}); err != nil {
			log.Printf("WARNING: log result for %s: %v", task.ID, err)
		}
	}

	updated, err := l.store.UpdateTaskStatus(ctx, task.ID, models.StatusCompleted, worker.Name(), "worker finished")
	if err != nil {
		log.Printf("WARNING: complete %s: %v", task.ID, err)
		return
	}

	if err := l.signoff.TriggerReview(ctx, updated); err != nil {
		log.Printf("WARNING: open review for %s: %v", task.ID, err)
	}

	l.mu.Lock()
	l.stats.Completed++
	l.stats.LastSuccessfulTask = task.ID
	l.mu.Unlock()
}

func (l *Loop) settle(ctx context.Context, task models.Task, cost float64) {
	if l.cfg.BudgetLimit <= 0 {
		return
	}
	if cost <= 0 {
		cost = l.projectedCost(task)
	}
	if err := l.store.SettleBudget(ctx, task.ID, cost); err != nil {
		log.Printf("WARNING: settle budget for %s: %v", task.ID, err)
	}
}

func (l *Loop) recordFailure(ctx context.Context, task models.Task, actor, message string, cause error) {
	detail := message
	if cause != nil {
		detail = cause.Error()
	}
	if err := l.store.AppendLog(ctx, models.ExecutionLogEntry{
		TaskID:      task.ID,
		Actor:       actor,
		Action:      models.ActionProgress,
		Message:     message,
		ErrorDetail: detail,
	}); err != nil {
		log.Printf("WARNING: log failure for %s: %v", task.ID, err)
	}
	if _, err := l.store.UpdateTaskStatus(ctx, task.ID, models.StatusFailed, actor, "dispatch failed: "+detail); err != nil {
		log.Printf("WARNING: mark %s failed: %v", task.ID, err)
	}
	l.mu.Lock()
	l.stats.Failed++
	l.mu.Unlock()
}

// sleepForRateWindow sleeps until the oldest claim leaves the rolling
// window, freeing a token, instead of busy-polling. Returns false when
// the context was cancelled.
func (l *Loop) sleepForRateWindow(ctx context.Context) bool {
	oldest, ok, err := l.store.OldestClaimInWindow(ctx)
	wait := l.cfg.PollInterval
	if err == nil && ok {
		if until := time.Until(oldest.Add(time.Hour)); until > 0 {
			wait = until + time.Second
		}
	}
	log.Printf("INFO: claim rate limit reached, pausing %s", wait.Round(time.Second))
	return sleepCtx(ctx, wait)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (l *Loop) finish(reason string) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.StopReason = reason
	if l.cfg.BudgetLimit > 0 {
		// Settled spend, not reservations, is the reported cost.
		if _, settled, err := l.store.BudgetTotals(context.Background()); err == nil {
			l.stats.TotalCost = settled
		}
	}
	return l.stats
}
