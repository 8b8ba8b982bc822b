package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tradeops/taskforge/types"
)

// ReserveBudget atomically checks the projected ledger total against
// the limit and records a reservation for the task. The check and the
// insert share one serializable transaction so two concurrent loops
// cannot jointly overspend.
func (s *SQLiteStore) ReserveBudget(ctx context.Context, taskID string, projected, limit float64) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total float64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(MAX(reserved, cost)), 0) FROM budget_ledger
	`).Scan(&total)
	if err != nil {
		return fmt.Errorf("sum budget ledger: %w", err)
	}

	if total+projected > limit {
		return types.ErrBudgetExceeded
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO budget_ledger (task_id, reserved, cost, recorded_at)
		VALUES (?, ?, 0, ?)
	`, taskID, projected, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("insert budget reservation: %w", err)
	}

	return tx.Commit()
}

// SettleBudget records the worker-reported cost against the task's
// most recent reservation. The cap keeps honoring the larger of
// reserved and settled, so the running total stays monotonic.
func (s *SQLiteStore) SettleBudget(ctx context.Context, taskID string, cost float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE budget_ledger SET cost = ?
		WHERE id = (SELECT MAX(id) FROM budget_ledger WHERE task_id = ?)
	`, cost, taskID)
	if err != nil {
		return fmt.Errorf("settle budget: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("settle rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no budget reservation for task %s", taskID)
	}
	return nil
}

// BudgetTotals returns the capped total (max of reserved and settled
// per entry) and the settled spend.
func (s *SQLiteStore) BudgetTotals(ctx context.Context) (reserved, settled float64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(MAX(reserved, cost)), 0), COALESCE(SUM(cost), 0)
		FROM budget_ledger
	`).Scan(&reserved, &settled)
	if err != nil {
		return 0, 0, fmt.Errorf("sum budget totals: %w", err)
	}
	return reserved, settled, nil
}
