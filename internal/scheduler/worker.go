// Package scheduler implements the autonomous loop: priority
// selection, atomic claiming, worker dispatch, rolling-window rate
// limiting, budget capping, and per-task failure isolation.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/types"
)

// Result is a worker's report for one dispatched task.
type Result struct {
	Success      bool
	FilesTouched []string
	Cost         float64
	Message      string
}

// Worker executes a claimed task. The scheduler treats this as an
// opaque, potentially slow, potentially failing call and performs it
// outside any lock or transaction.
type Worker interface {
	Name() string
	Execute(ctx context.Context, task models.Task) (Result, error)
}

// Registry routes capability tags to workers. The table is static
// configuration resolved at load time, not dynamic inheritance; a hot
// policy reload swaps the whole table.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]Worker
}

// NewRegistry creates an empty worker registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]Worker)}
}

// Register binds a capability tag to a worker.
func (r *Registry) Register(capability string, w Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[capability] = w
}

// Replace swaps the entire routing table.
func (r *Registry) Replace(workers map[string]Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers = workers
}

// Resolve finds the worker for a capability tag.
func (r *Registry) Resolve(capability string) (Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[capability]
	return w, ok
}

// RegistryFromRouting builds command workers from routing rules.
func RegistryFromRouting(rules []types.RoutingRule) *Registry {
	reg := NewRegistry()
	for _, rule := range rules {
		reg.Register(rule.Capability, NewCommandWorker(rule.Capability, rule.Command))
	}
	return reg
}

// maxWorkerOutput bounds the log message recorded from worker output.
const maxWorkerOutput = 4096

// CommandWorker dispatches a task to an external command. The task is
// written to stdin as JSON; a zero exit status means success and the
// command's output becomes the result message.
type CommandWorker struct {
	name string
	argv []string
}

// NewCommandWorker creates a worker running the given argv.
func NewCommandWorker(name string, argv []string) *CommandWorker {
	return &CommandWorker{name: name, argv: argv}
}

// Name returns the worker's capability tag.
func (w *CommandWorker) Name() string { return w.name }

// Execute runs the command under the loop context. Cancellation kills
// the process.
func (w *CommandWorker) Execute(ctx context.Context, task models.Task) (Result, error) {
	if len(w.argv) == 0 {
		return Result{}, fmt.Errorf("worker %s has no command", w.name)
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return Result{}, fmt.Errorf("encode task for worker: %w", err)
	}

	cmd := exec.CommandContext(ctx, w.argv[0], w.argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = append(cmd.Environ(), "TASKFORGE_TASK_ID="+task.ID)

	out, err := cmd.CombinedOutput()
	msg := strings.TrimSpace(string(out))
	if len(msg) > maxWorkerOutput {
		msg = msg[:maxWorkerOutput]
	}
	if err != nil {
		return Result{Success: false, Message: msg}, fmt.Errorf("worker %s: %w", w.name, err)
	}
	return Result{Success: true, Message: msg}, nil
}
