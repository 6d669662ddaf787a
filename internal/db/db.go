package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Process lifecycle events.
const (
	EventProcessStarted = "process.started"
	EventProcessExited  = "process.exited"
)

// Agent execution events.
const (
	EventAgentStarted        = "agent.started"
	EventAgentCompleted      = "agent.completed"
	EventAgentFailed         = "agent.failed"
	EventTurnStarted         = "turn.started"
	EventTurnCompleted       = "turn.completed"
	EventCommandParsed       = "command.parsed"
	EventCommandRejected     = "command.rejected"
	EventToolCallStarted     = "tool_call.started"
	EventToolCallDone        = "tool_call.completed"
	EventToolCallFailed      = "tool_call.failed"
	EventToolCallDeclined    = "tool_call.declined"
	EventContextCompacted    = "context.compacted"
	EventControlLimitReached = "control.limit_reached"
)

// OpenDB opens (or creates) a SQLite database at the given path, ensuring
// that the parent directory exists.
func OpenDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}

	return db, nil
}

// InitSchema creates all tables: events, actions.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY,
			timestamp INTEGER NOT NULL DEFAULT (unixepoch()),
			parent_id INTEGER,
			event_type TEXT NOT NULL,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_parent_id ON events(parent_id);

		CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			action TEXT NOT NULL,
			success INTEGER NOT NULL,
			result TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_actions_run_id ON actions(run_id, id);
	`)
	return err
}

// LogEvent inserts an event into the events table and returns its auto-generated id.
// parentID may be nil for root events. payload is serialized to JSON; nil payload stores NULL.
func LogEvent(db *sql.DB, parentID *int64, eventType string, payload map[string]any) (int64, error) {
	var payloadJSON any
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal event payload: %w", err)
		}
		payloadJSON = string(data)
	}

	res, err := db.Exec(
		`INSERT INTO events (parent_id, event_type, payload) VALUES (?, ?, ?)`,
		parentID, eventType, payloadJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event %s: %w", eventType, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get event id: %w", err)
	}
	return id, nil
}

// Action is one executed command in a run's action log.
type Action struct {
	RunID     string
	Iteration int
	Action    string
	Success   bool
	Result    string
	CreatedAt time.Time
}

// RecordAction appends an entry to the action log.
func RecordAction(db *sql.DB, a Action) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := db.Exec(
		`INSERT INTO actions (run_id, iteration, action, success, result, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.RunID, a.Iteration, a.Action, a.Success, a.Result, a.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert action %s: %w", a.Action, err)
	}
	return nil
}

// ListActions returns a run's action log in insertion order.
func ListActions(db *sql.DB, runID string) ([]Action, error) {
	rows, err := db.Query(
		`SELECT run_id, iteration, action, success, result, created_at FROM actions WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		var a Action
		var createdMs int64
		if err := rows.Scan(&a.RunID, &a.Iteration, &a.Action, &a.Success, &a.Result, &createdMs); err != nil {
			return nil, err
		}
		a.CreatedAt = time.UnixMilli(createdMs)
		out = append(out, a)
	}
	return out, rows.Err()
}

// LatestRoot returns the most recent process.started event id, or 0 when
// there is none.
func LatestRoot(db *sql.DB) (int64, error) {
	var id int64
	err := db.QueryRow(
		`SELECT id FROM events WHERE event_type = ? AND parent_id IS NULL ORDER BY id DESC LIMIT 1`,
		EventProcessStarted,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}
