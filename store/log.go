package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tradeops/taskforge/models"
)

// appendLogTx writes a log entry inside an existing transaction.
// Status transitions use this so the audit row lands atomically with
// the status change.
func appendLogTx(ctx context.Context, tx *sql.Tx, entry models.ExecutionLogEntry) error {
	files, err := marshalStrings(entry.FilesTouched)
	if err != nil {
		return err
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO execution_log (task_id, timestamp, actor, action, message, files_touched, error_detail, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.TaskID, formatTime(entry.Timestamp), entry.Actor, entry.Action,
		entry.Message, files, entry.ErrorDetail, int64(entry.Duration))
	if err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

// AppendLog writes a standalone execution log entry.
func (s *SQLiteStore) AppendLog(ctx context.Context, entry models.ExecutionLogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := appendLogTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// ListLog returns a task's execution log ordered by timestamp, then
// insertion order for entries sharing a timestamp.
func (s *SQLiteStore) ListLog(ctx context.Context, taskID string) ([]models.ExecutionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, timestamp, actor, action, message, files_touched, error_detail, duration
		FROM execution_log
		WHERE task_id = ?
		ORDER BY timestamp, id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query execution log: %w", err)
	}
	defer rows.Close()

	var entries []models.ExecutionLogEntry
	for rows.Next() {
		var (
			e                           models.ExecutionLogEntry
			ts                          string
			message, files, errorDetail sql.NullString
			duration                    sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &ts, &e.Actor, &e.Action, &message, &files, &errorDetail, &duration); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("parse log timestamp: %w", err)
		}
		e.Message = message.String
		e.ErrorDetail = errorDetail.String
		e.Duration = time.Duration(duration.Int64)
		if e.FilesTouched, err = unmarshalStrings(files.String); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
