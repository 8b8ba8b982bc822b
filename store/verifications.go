package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tradeops/taskforge/models"
)

// RecordVerification stores a QA result and logs it against the task
// in the same transaction.
func (s *SQLiteStore) RecordVerification(ctx context.Context, v models.Verification) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	results := "{}"
	if len(v.TestResults) > 0 {
		b, err := json.Marshal(v.TestResults)
		if err != nil {
			return fmt.Errorf("marshal test results: %w", err)
		}
		results = string(b)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO verifications (task_id, verified_by, passed, notes, test_results, user_feedback, user_comments, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, v.TaskID, v.VerifiedBy, boolToInt(v.Passed), v.Notes, results,
		string(v.UserFeedback), v.UserComments, formatTime(v.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}

	outcome := "passed"
	if v.Negative() {
		outcome = "failed"
	}
	if err := appendLogTx(ctx, tx, models.ExecutionLogEntry{
		TaskID:    v.TaskID,
		Timestamp: v.CreatedAt,
		Actor:     v.VerifiedBy,
		Action:    models.ActionVerification,
		Message:   fmt.Sprintf("verification %s: %s", outcome, v.Notes),
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// ListVerifications returns a task's verification history, oldest first.
func (s *SQLiteStore) ListVerifications(ctx context.Context, taskID string) ([]models.Verification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, verified_by, passed, notes, test_results, user_feedback, user_comments, created_at
		FROM verifications
		WHERE task_id = ?
		ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query verifications: %w", err)
	}
	defer rows.Close()

	var out []models.Verification
	for rows.Next() {
		var (
			v                                  models.Verification
			passed                             int
			notes, results, feedback, comments sql.NullString
			createdAt                          string
		)
		if err := rows.Scan(&v.ID, &v.TaskID, &v.VerifiedBy, &passed, &notes, &results, &feedback, &comments, &createdAt); err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		v.Passed = passed != 0
		v.Notes = notes.String
		v.UserFeedback = models.UserFeedback(feedback.String)
		v.UserComments = comments.String
		if results.String != "" && results.String != "{}" {
			if err := json.Unmarshal([]byte(results.String), &v.TestResults); err != nil {
				return nil, fmt.Errorf("unmarshal test results: %w", err)
			}
		}
		if v.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse verification timestamp: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// OpenIssueCount counts negative verification rows not superseded by a
// later clean pass. A passing row with non-negative feedback resolves
// everything before it.
func (s *SQLiteStore) OpenIssueCount(ctx context.Context, taskID string) (int, error) {
	verifications, err := s.ListVerifications(ctx, taskID)
	if err != nil {
		return 0, err
	}
	open := 0
	for _, v := range verifications {
		if v.Negative() {
			open++
		} else {
			open = 0
		}
	}
	return open, nil
}
