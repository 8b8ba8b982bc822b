package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/types"
)

// CreateTask validates and inserts a task plus its dependency edges in
// one transaction. Dependency ids must reference existing tasks and
// must not introduce a cycle.
func (s *SQLiteStore) CreateTask(ctx context.Context, task models.Task) (models.Task, error) {
	if err := models.ValidateStruct(task); err != nil {
		return models.Task{}, types.ValidationError("invalid task: %v", err)
	}
	if task.HasDependency(task.ID) {
		return models.Task{}, types.ValidationError("task %s cannot depend on itself", task.ID)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return models.Task{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Every dependency must already exist.
	for _, depID := range task.Dependencies {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, depID).Scan(&one)
		if err == sql.ErrNoRows {
			return models.Task{}, types.ValidationError("unknown dependency id: %s", depID)
		}
		if err != nil {
			return models.Task{}, fmt.Errorf("check dependency %s: %w", depID, err)
		}
	}

	// Reachability check over the existing edge set: if this task's id
	// is reachable from any of its dependencies, inserting the edges
	// would close a cycle.
	edges, err := loadDependencyEdges(ctx, tx)
	if err != nil {
		return models.Task{}, err
	}
	for _, depID := range task.Dependencies {
		if reachable(edges, depID, task.ID) {
			return models.Task{}, types.ValidationError("dependency %s would create a cycle with task %s", depID, task.ID)
		}
	}

	tags, err := marshalStrings(task.Tags)
	if err != nil {
		return models.Task{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, type, priority, status,
			assigned_agent, feature_area, tags, estimated_duration,
			created_at, started_at, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.Title, task.Description, task.Type, task.Priority, task.Status,
		task.AssignedAgent, task.FeatureArea, tags, int64(task.EstimatedDuration),
		formatTime(task.CreatedAt), formatTimePtr(task.StartedAt),
		formatTimePtr(task.CompletedAt), formatTime(task.UpdatedAt))
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}

	for _, depID := range task.Dependencies {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO task_dependencies (task_id, depends_on_id) VALUES (?, ?)
		`, task.ID, depID)
		if err != nil {
			return models.Task{}, fmt.Errorf("insert dependency %s -> %s: %w", task.ID, depID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Task{}, fmt.Errorf("commit transaction: %w", err)
	}
	return task, nil
}

// loadDependencyEdges loads the full dependency edge map inside a
// transaction: task id -> ids it depends on.
func loadDependencyEdges(ctx context.Context, tx *sql.Tx) (map[string][]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT task_id, depends_on_id FROM task_dependencies`)
	if err != nil {
		return nil, fmt.Errorf("query dependency edges: %w", err)
	}
	defer rows.Close()

	edges := make(map[string][]string)
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, fmt.Errorf("scan dependency edge: %w", err)
		}
		edges[from] = append(edges[from], to)
	}
	return edges, rows.Err()
}

// reachable walks depends-on edges from start looking for target.
func reachable(edges map[string][]string, start, target string) bool {
	if start == target {
		return true
	}
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range edges[cur] {
			if next == target {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// GetTask retrieves a task by id, including its dependency list.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return models.Task{}, types.NotFoundError(id)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("query task: %w", err)
	}
	if task.Dependencies, err = s.dependencyIDs(ctx, id); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *SQLiteStore) dependencyIDs(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT depends_on_id FROM task_dependencies WHERE task_id = ? ORDER BY depends_on_id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	deps := []string{}
	for rows.Next() {
		var depID string
		if err := rows.Scan(&depID); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		deps = append(deps, depID)
	}
	return deps, rows.Err()
}

// ListTasks returns tasks matching the filter, ordered by priority
// descending then created_at ascending.
func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, filter.Priority)
	}
	if filter.FeatureArea != "" {
		where = append(where, "feature_area = ?")
		args = append(args, filter.FeatureArea)
	}
	if filter.AssignedAgent != "" {
		where = append(where, "assigned_agent = ?")
		args = append(args, filter.AssignedAgent)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + priorityOrder + `, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	// Tag filtering happens after the scan; tags live in a JSON column.
	out := tasks[:0]
	for _, task := range tasks {
		if filter.Tag != "" && !task.HasTag(filter.Tag) {
			continue
		}
		deps, err := s.dependencyIDs(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		task.Dependencies = deps
		out = append(out, task)
	}
	return out, nil
}

// UpdateTaskStatus is the sole mutator of task status. It enforces the
// transition table and appends the matching execution log entry in the
// same transaction.
func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, id string, newStatus models.TaskStatus, actor, message string) (models.Task, error) {
	return s.transition(ctx, id, newStatus, actor, message, false)
}

// ForceTaskStatus applies an operator override that bypasses the
// transition table. Terminal source states still refuse: the audit
// trail of finished work is immutable.
func (s *SQLiteStore) ForceTaskStatus(ctx context.Context, id string, newStatus models.TaskStatus, reason string) (models.Task, error) {
	return s.transition(ctx, id, newStatus, models.ActorUser, "forced: "+reason, true)
}

// CancelTask cancels a non-terminal task with a logged reason.
func (s *SQLiteStore) CancelTask(ctx context.Context, id, reason string) (models.Task, error) {
	return s.transition(ctx, id, models.StatusCancelled, models.ActorUser, reason, false)
}

func (s *SQLiteStore) transition(ctx context.Context, id string, newStatus models.TaskStatus, actor, message string, force bool) (models.Task, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return models.Task{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current models.TaskStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return models.Task{}, types.NotFoundError(id)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("query status: %w", err)
	}

	if current.IsTerminal() {
		return models.Task{}, types.PreconditionError("task %s is %s and cannot change status", id, current)
	}
	if !force && !models.CanTransition(current, newStatus) {
		return models.Task{}, types.PreconditionError("invalid status transition %s -> %s for task %s", current, newStatus, id)
	}

	now := time.Now().UTC()
	sets := []string{"status = ?", "updated_at = ?"}
	args := []interface{}{newStatus, formatTime(now)}
	switch newStatus {
	case models.StatusInProgress:
		sets = append(sets, "started_at = COALESCE(started_at, ?)")
		args = append(args, formatTime(now))
	case models.StatusCompleted:
		sets = append(sets, "completed_at = ?")
		args = append(args, formatTime(now))
	}
	args = append(args, id)

	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return models.Task{}, fmt.Errorf("update status: %w", err)
	}

	if err := appendLogTx(ctx, tx, models.ExecutionLogEntry{
		TaskID:    id,
		Timestamp: now,
		Actor:     actor,
		Action:    models.ActionForTransition(current, newStatus),
		Message:   message,
	}); err != nil {
		return models.Task{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Task{}, fmt.Errorf("commit transaction: %w", err)
	}
	return s.GetTask(ctx, id)
}

// ClaimTask atomically moves a pending task to in_progress. The
// conditional update is the sole mechanism preventing double-dispatch
// under concurrent schedulers; the rate token is consumed in the same
// transaction so two loops cannot jointly exceed the hourly cap.
func (s *SQLiteStore) ClaimTask(ctx context.Context, id, actor string, maxPerHour int) (models.Task, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return models.Task{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	windowStart := formatTime(now.Add(-time.Hour))

	if maxPerHour > 0 {
		var claims int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM claim_events WHERE claimed_at > ?
		`, windowStart).Scan(&claims)
		if err != nil {
			return models.Task{}, fmt.Errorf("count claim window: %w", err)
		}
		if claims >= maxPerHour {
			return models.Task{}, types.ErrRateLimited
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, started_at = COALESCE(started_at, ?), updated_at = ?
		WHERE id = ? AND status = ?
	`, models.StatusInProgress, formatTime(now), formatTime(now), id, models.StatusPending)
	if err != nil {
		return models.Task{}, fmt.Errorf("claim update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Task{}, fmt.Errorf("claim rows affected: %w", err)
	}
	if affected == 0 {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, id).Scan(&one); err == sql.ErrNoRows {
			return models.Task{}, types.NotFoundError(id)
		}
		// Someone else got it; not an error.
		return models.Task{}, types.ErrConcurrencyLost
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO claim_events (task_id, claimed_at) VALUES (?, ?)
	`, id, formatTime(now)); err != nil {
		return models.Task{}, fmt.Errorf("record claim event: %w", err)
	}

	if err := appendLogTx(ctx, tx, models.ExecutionLogEntry{
		TaskID:    id,
		Timestamp: now,
		Actor:     actor,
		Action:    models.ActionStarted,
		Message:   "claimed by scheduler",
	}); err != nil {
		return models.Task{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Task{}, fmt.Errorf("commit claim: %w", err)
	}
	return s.GetTask(ctx, id)
}

// OldestClaimInWindow returns the oldest claim timestamp inside the
// current rolling hour, for computing how long a rate-limited loop
// should sleep before a token frees.
func (s *SQLiteStore) OldestClaimInWindow(ctx context.Context) (time.Time, bool, error) {
	windowStart := formatTime(time.Now().UTC().Add(-time.Hour))
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MIN(claimed_at) FROM claim_events WHERE claimed_at > ?
	`, windowStart).Scan(&raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query oldest claim: %w", err)
	}
	if !raw.Valid {
		return time.Time{}, false, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse claim timestamp: %w", err)
	}
	return t, true, nil
}

// DependencyStatuses returns the status of each dependency of a task.
func (s *SQLiteStore) DependencyStatuses(ctx context.Context, taskID string) (map[string]models.TaskStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.depends_on_id, t.status
		FROM task_dependencies d
		JOIN tasks t ON t.id = d.depends_on_id
		WHERE d.task_id = ?
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query dependency statuses: %w", err)
	}
	defer rows.Close()

	statuses := make(map[string]models.TaskStatus)
	for rows.Next() {
		var depID string
		var status models.TaskStatus
		if err := rows.Scan(&depID, &status); err != nil {
			return nil, fmt.Errorf("scan dependency status: %w", err)
		}
		statuses[depID] = status
	}
	return statuses, rows.Err()
}
