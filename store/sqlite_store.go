package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tradeops/taskforge/models"
)

// SQLiteStore implements TaskStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath, creating
// parent directories as needed. WAL mode and a busy timeout keep
// concurrent scheduler loops from tripping over each other.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single pooled connection turns lock
	// contention into queueing.
	db.SetMaxOpenConns(1)

	// modernc.org/sqlite needs the PRAGMA, not a connection string knob.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

var memStoreSeq atomic.Int64

// NewMemoryStore creates an in-memory store for testing. Each call gets
// its own named shared-cache database, so a store's connections see one
// database while separate stores stay isolated.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	name := fmt.Sprintf("file:mem%d?mode=memory&cache=shared", memStoreSeq.Add(1))
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return nil, fmt.Errorf("open memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		type TEXT NOT NULL,
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		assigned_agent TEXT,
		feature_area TEXT,
		tags TEXT,                         -- JSON array
		estimated_duration INTEGER,        -- nanoseconds
		created_at TEXT NOT NULL,
		started_at TEXT,
		completed_at TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS task_dependencies (
		task_id TEXT NOT NULL,
		depends_on_id TEXT NOT NULL,
		PRIMARY KEY (task_id, depends_on_id),
		FOREIGN KEY (task_id) REFERENCES tasks(id),
		FOREIGN KEY (depends_on_id) REFERENCES tasks(id)
	);

	CREATE INDEX IF NOT EXISTS idx_task_dependencies_task_id ON task_dependencies(task_id);

	-- Append-only: rows are never updated or deleted.
	CREATE TABLE IF NOT EXISTS execution_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		message TEXT,
		files_touched TEXT,                -- JSON array
		error_detail TEXT,
		duration INTEGER,                  -- nanoseconds
		FOREIGN KEY (task_id) REFERENCES tasks(id)
	);

	CREATE INDEX IF NOT EXISTS idx_execution_log_task_timestamp
		ON execution_log(task_id, timestamp);

	-- Append-only: a re-review adds a new row, never updates one.
	CREATE TABLE IF NOT EXISTS agent_signoffs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		agent TEXT NOT NULL,
		decision TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		is_final INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (task_id) REFERENCES tasks(id)
	);

	CREATE INDEX IF NOT EXISTS idx_agent_signoffs_task ON agent_signoffs(task_id);

	CREATE TABLE IF NOT EXISTS verifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		verified_by TEXT NOT NULL,
		passed INTEGER NOT NULL,
		notes TEXT,
		test_results TEXT,                 -- JSON object
		user_feedback TEXT,
		user_comments TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY (task_id) REFERENCES tasks(id)
	);

	CREATE INDEX IF NOT EXISTS idx_verifications_task ON verifications(task_id);

	-- One row per successful claim; the rolling-window rate limit
	-- counts rows newer than now minus one hour.
	CREATE TABLE IF NOT EXISTS claim_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		claimed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_claim_events_claimed_at ON claim_events(claimed_at);

	-- Budget ledger: reserved is charged before dispatch, cost is the
	-- settled worker-reported amount. The cap check uses
	-- max(reserved, cost) so the running total never exceeds the limit.
	CREATE TABLE IF NOT EXISTS budget_ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		reserved REAL NOT NULL,
		cost REAL NOT NULL DEFAULT 0,
		recorded_at TEXT NOT NULL,
		FOREIGN KEY (task_id) REFERENCES tasks(id)
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func marshalStrings(ss []string) (string, error) {
	if len(ss) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "", fmt.Errorf("marshal string list: %w", err)
	}
	return string(b), nil
}

func unmarshalStrings(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("unmarshal string list: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// taskColumns is the canonical select list for scanning tasks.
const taskColumns = `id, title, description, type, priority, status,
	assigned_agent, feature_area, tags, estimated_duration,
	created_at, started_at, completed_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (models.Task, error) {
	var (
		t                              models.Task
		description, agent, area, tags sql.NullString
		estimated                      sql.NullInt64
		createdAt, updatedAt           string
		startedAt, completedAt         sql.NullString
	)
	err := row.Scan(&t.ID, &t.Title, &description, &t.Type, &t.Priority, &t.Status,
		&agent, &area, &tags, &estimated, &createdAt, &startedAt, &completedAt, &updatedAt)
	if err != nil {
		return models.Task{}, err
	}

	t.Description = description.String
	t.AssignedAgent = agent.String
	t.FeatureArea = area.String
	t.EstimatedDuration = time.Duration(estimated.Int64)

	if t.Tags, err = unmarshalStrings(tags.String); err != nil {
		return models.Task{}, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Task{}, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Task{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if startedAt.Valid {
		ts, err := parseTime(startedAt.String)
		if err != nil {
			return models.Task{}, fmt.Errorf("parse started_at: %w", err)
		}
		t.StartedAt = &ts
	}
	if completedAt.Valid {
		ts, err := parseTime(completedAt.String)
		if err != nil {
			return models.Task{}, fmt.Errorf("parse completed_at: %w", err)
		}
		t.CompletedAt = &ts
	}
	return t, nil
}

// priorityOrder sorts critical first in SQL without a rank column.
const priorityOrder = `CASE priority
	WHEN 'critical' THEN 0
	WHEN 'high' THEN 1
	WHEN 'medium' THEN 2
	ELSE 3 END`
