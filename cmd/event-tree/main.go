package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/stupiduntilnot/termagent/internal/db"
)

// Event represents a row from the events table.
type Event struct {
	ID        int64
	Timestamp int64
	ParentID  sql.NullInt64
	EventType string
	Payload   sql.NullString
	Children  []*Event
}

type options struct {
	dbPath    string
	eventID   int64
	runID     string
	maxDepth  int
	jsonOut   bool
	noPayload bool
	actions   bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var o options
	fs := flag.NewFlagSet("event-tree", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.dbPath, "db", envOrDefault("AGENT_DB_PATH", "./agent.db"), "SQLite database path")
	fs.Int64Var(&o.eventID, "id", 0, "show subtree of a specific event ID")
	fs.StringVar(&o.runID, "run", "", "show the agent.started subtree of a run ID")
	fs.IntVar(&o.maxDepth, "L", 0, "limit display depth (0 = unlimited)")
	fs.BoolVar(&o.jsonOut, "json", false, "output JSON format")
	fs.BoolVar(&o.noPayload, "no-payload", false, "hide payload details")
	fs.BoolVar(&o.actions, "actions", false, "print the action log of -run instead of the tree")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := render(o, stdout); err != nil {
		fmt.Fprintf(stderr, "[event-tree] %v\n", err)
		return 1
	}
	return 0
}

func render(o options, w io.Writer) error {
	if o.actions && o.runID == "" {
		return fmt.Errorf("-actions requires -run")
	}
	database, err := sql.Open("sqlite3", o.dbPath+"?mode=ro&_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer database.Close()
	if err := database.Ping(); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	if o.actions {
		return printActions(w, database, o.runID)
	}

	rootID, err := resolveRoot(database, o)
	if err != nil {
		return err
	}
	events, err := querySubtree(database, rootID)
	if err != nil {
		return fmt.Errorf("query subtree: %w", err)
	}
	root := buildTree(events, rootID)
	if root == nil {
		return fmt.Errorf("event %d not found", rootID)
	}

	if o.jsonOut {
		return printJSON(w, root, o.maxDepth, o.noPayload)
	}
	printTree(w, root, "", true, 1, o.maxDepth, o.noPayload)
	return nil
}

// resolveRoot picks the tree root: an explicit id, a run's agent.started
// event, or the latest process.started root.
func resolveRoot(database *sql.DB, o options) (int64, error) {
	switch {
	case o.eventID > 0:
		return o.eventID, nil
	case o.runID != "":
		return runRoot(database, o.runID)
	}
	id, err := db.LatestRoot(database)
	if err != nil {
		return 0, fmt.Errorf("find process root: %w", err)
	}
	if id == 0 {
		return 0, fmt.Errorf("no process.started event found")
	}
	return id, nil
}

func runRoot(database *sql.DB, runID string) (int64, error) {
	var id int64
	err := database.QueryRow(
		`SELECT id FROM events WHERE event_type = ? AND json_extract(payload, '$.run_id') = ?
		 ORDER BY id DESC LIMIT 1`,
		db.EventAgentStarted, runID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("no run %s", runID)
	}
	return id, err
}

// querySubtree returns all events in the subtree rooted at rootID using a recursive CTE.
func querySubtree(database *sql.DB, rootID int64) ([]*Event, error) {
	rows, err := database.Query(`
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM events WHERE id = ?
			UNION ALL
			SELECT e.id FROM events e JOIN subtree s ON e.parent_id = s.id
		)
		SELECT e.id, e.timestamp, e.parent_id, e.event_type, e.payload
		FROM events e
		WHERE e.id IN (SELECT id FROM subtree)
		ORDER BY e.id ASC
	`, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		ev := &Event{}
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.ParentID, &ev.EventType, &ev.Payload); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// buildTree organizes a flat list of events into a tree rooted at rootID.
func buildTree(events []*Event, rootID int64) *Event {
	byID := make(map[int64]*Event, len(events))
	for _, ev := range events {
		byID[ev.ID] = ev
	}
	for _, ev := range events {
		if ev.ParentID.Valid && ev.ParentID.Int64 != ev.ID {
			if parent, ok := byID[ev.ParentID.Int64]; ok {
				parent.Children = append(parent.Children, ev)
			}
		}
	}
	for _, ev := range events {
		sort.Slice(ev.Children, func(i, j int) bool {
			return ev.Children[i].ID < ev.Children[j].ID
		})
	}
	return byID[rootID]
}

// printTree renders the event tree using box-drawing characters.
func printTree(w io.Writer, ev *Event, prefix string, isLast bool, depth, maxDepth int, noPayload bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	line := formatEvent(ev, noPayload)
	if depth == 1 {
		fmt.Fprintln(w, line)
	} else {
		fmt.Fprintln(w, prefix+connector+line)
	}

	childPrefix := prefix
	if depth > 1 {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}
	if maxDepth > 0 && depth >= maxDepth {
		if len(ev.Children) > 0 {
			fmt.Fprintln(w, childPrefix+"└── [...]")
		}
		return
	}
	for i, child := range ev.Children {
		printTree(w, child, childPrefix, i == len(ev.Children)-1, depth+1, maxDepth, noPayload)
	}
}

// formatEvent formats a single event line: [id] timestamp  event_type  key=value ...
func formatEvent(ev *Event, noPayload bool) string {
	ts := time.Unix(ev.Timestamp, 0).UTC().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%d] %s  %s", ev.ID, ts, ev.EventType)

	if m := payloadMap(ev, noPayload); m != nil {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line += fmt.Sprintf("  %s=%s", k, formatValue(m[k]))
		}
	}
	return line
}

func payloadMap(ev *Event, noPayload bool) map[string]any {
	if noPayload || !ev.Payload.Valid || ev.Payload.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ev.Payload.String), &m); err != nil {
		return nil
	}
	return m
}

// formatValue converts a payload value to a display string, truncating long text.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if r := []rune(val); len(r) > 80 {
			return fmt.Sprintf("%q", string(r[:80])+"...")
		}
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

type jsonEvent struct {
	ID        int64       `json:"id"`
	Timestamp int64       `json:"timestamp"`
	EventType string      `json:"event_type"`
	Payload   any         `json:"payload,omitempty"`
	Children  []jsonEvent `json:"children,omitempty"`
}

func toJSONEvent(ev *Event, depth, maxDepth int, noPayload bool) jsonEvent {
	je := jsonEvent{
		ID:        ev.ID,
		Timestamp: ev.Timestamp,
		EventType: ev.EventType,
	}
	if m := payloadMap(ev, noPayload); m != nil {
		je.Payload = m
	}
	if maxDepth > 0 && depth >= maxDepth {
		return je
	}
	for _, child := range ev.Children {
		je.Children = append(je.Children, toJSONEvent(child, depth+1, maxDepth, noPayload))
	}
	return je
}

func printJSON(w io.Writer, root *Event, maxDepth int, noPayload bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toJSONEvent(root, 1, maxDepth, noPayload)); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func printActions(w io.Writer, database *sql.DB, runID string) error {
	actions, err := db.ListActions(database, runID)
	if err != nil {
		return fmt.Errorf("list actions: %w", err)
	}
	if len(actions) == 0 {
		return fmt.Errorf("no actions recorded for run %s", runID)
	}
	for _, a := range actions {
		status := "ok"
		if !a.Success {
			status = "failed"
		}
		fmt.Fprintf(w, "#%-3d %s  %-6s  %s\n", a.Iteration, a.CreatedAt.UTC().Format("2006-01-02 15:04:05"), status, a.Action)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
