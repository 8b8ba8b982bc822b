package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tradeops/taskforge/models"
)

// CreatePendingSignOffs inserts one pending review row per required
// agent. Called by the coordinator when a review round opens.
func (s *SQLiteStore) CreatePendingSignOffs(ctx context.Context, taskID string, agents []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now().UTC())
	for _, agent := range agents {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO agent_signoffs (task_id, agent, decision, timestamp, is_final)
			VALUES (?, ?, ?, ?, 0)
		`, taskID, agent, models.DecisionPending, now)
		if err != nil {
			return fmt.Errorf("insert pending sign-off for %s: %w", agent, err)
		}
	}
	return tx.Commit()
}

// AddSignOff appends a reviewer decision row. Rows are never updated:
// a re-review after a rejection produces a new row and consensus
// counts only the latest final row per agent.
func (s *SQLiteStore) AddSignOff(ctx context.Context, so models.AgentSignOff) error {
	if so.Timestamp.IsZero() {
		so.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_signoffs (task_id, agent, decision, timestamp, is_final)
		VALUES (?, ?, ?, ?, ?)
	`, so.TaskID, so.Agent, so.Decision, formatTime(so.Timestamp), boolToInt(so.IsFinal))
	if err != nil {
		return fmt.Errorf("insert sign-off: %w", err)
	}
	return nil
}

// LatestSignOffs returns each agent's most recent final decision row
// for the task.
func (s *SQLiteStore) LatestSignOffs(ctx context.Context, taskID string) (map[string]models.AgentSignOff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, agent, decision, timestamp, is_final
		FROM agent_signoffs
		WHERE task_id = ? AND is_final = 1
		ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query sign-offs: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]models.AgentSignOff)
	for rows.Next() {
		so, err := scanSignOff(rows)
		if err != nil {
			return nil, err
		}
		// Later rows overwrite earlier ones; ORDER BY id makes the
		// last row per agent the newest.
		latest[so.Agent] = so
	}
	return latest, rows.Err()
}

// ListSignOffs returns the task's full review history, pending rows
// included, in insertion order.
func (s *SQLiteStore) ListSignOffs(ctx context.Context, taskID string) ([]models.AgentSignOff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, agent, decision, timestamp, is_final
		FROM agent_signoffs
		WHERE task_id = ?
		ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query sign-off history: %w", err)
	}
	defer rows.Close()

	var signoffs []models.AgentSignOff
	for rows.Next() {
		so, err := scanSignOff(rows)
		if err != nil {
			return nil, err
		}
		signoffs = append(signoffs, so)
	}
	return signoffs, rows.Err()
}

func scanSignOff(row rowScanner) (models.AgentSignOff, error) {
	var (
		so      models.AgentSignOff
		ts      string
		isFinal int
	)
	if err := row.Scan(&so.ID, &so.TaskID, &so.Agent, &so.Decision, &ts, &isFinal); err != nil {
		return models.AgentSignOff{}, fmt.Errorf("scan sign-off: %w", err)
	}
	t, err := parseTime(ts)
	if err != nil {
		return models.AgentSignOff{}, fmt.Errorf("parse sign-off timestamp: %w", err)
	}
	so.Timestamp = t
	so.IsFinal = isFinal != 0
	return so, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
