package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stupiduntilnot/termagent/internal/db"
)

// testDB creates a temporary SQLite database with schema initialized.
func testDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	database, err := db.OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.InitSchema(database); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return database, path
}

// seedRunTree inserts one agent session and returns the process root id.
//
// Tree structure:
//
//	process.started                id=1
//	├── agent.started (run-1)      id=2
//	│   ├── turn.started           id=3
//	│   │   ├── command.parsed     id=4
//	│   │   └── tool_call.started  id=5
//	│   │       └── tool_call.completed id=6
//	│   ├── turn.completed         id=7
//	│   └── agent.completed        id=8
//	└── process.exited             id=9
func seedRunTree(t *testing.T, database *sql.DB) int64 {
	t.Helper()

	rootID, _ := db.LogEvent(database, nil, db.EventProcessStarted, map[string]any{"role": "agent", "provider": "dummy"})
	agentID, _ := db.LogEvent(database, &rootID, db.EventAgentStarted, map[string]any{"run_id": "run-1", "task": "create a.txt"})
	turnID, _ := db.LogEvent(database, &agentID, db.EventTurnStarted, map[string]any{"iteration": 1})
	db.LogEvent(database, &turnID, db.EventCommandParsed, map[string]any{"kind": "CREATE_FILE"})
	toolID, _ := db.LogEvent(database, &turnID, db.EventToolCallStarted, map[string]any{"kind": "CREATE_FILE", "target": "a.txt"})
	db.LogEvent(database, &toolID, db.EventToolCallDone, map[string]any{"kind": "CREATE_FILE", "latency_ms": 3})
	db.LogEvent(database, &agentID, db.EventTurnCompleted, map[string]any{"iteration": 1, "latency_ms": 1820})
	db.LogEvent(database, &agentID, db.EventAgentCompleted, map[string]any{"iterations": 1})
	db.LogEvent(database, &rootID, db.EventProcessExited, nil)

	if err := db.RecordAction(database, db.Action{RunID: "run-1", Iteration: 1, Action: "CREATE_FILE a.txt", Success: true, Result: "File created: a.txt"}); err != nil {
		t.Fatal(err)
	}
	return rootID
}

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return out.String(), errOut.String(), code
}

func TestQuerySubtree(t *testing.T) {
	database, _ := testDB(t)
	rootID := seedRunTree(t, database)

	events, err := querySubtree(database, rootID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 9 {
		t.Fatalf("expected 9 events, got %d", len(events))
	}

	sub, err := querySubtree(database, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(sub) != 4 {
		t.Fatalf("expected turn subtree of 4 events, got %d", len(sub))
	}
}

func TestBuildTree(t *testing.T) {
	database, _ := testDB(t)
	rootID := seedRunTree(t, database)
	events, err := querySubtree(database, rootID)
	if err != nil {
		t.Fatal(err)
	}

	root := buildTree(events, rootID)
	if root == nil || root.EventType != db.EventProcessStarted {
		t.Fatalf("unexpected root: %+v", root)
	}
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 children of root, got %d", len(root.Children))
	}
	agent := root.Children[0]
	if agent.EventType != db.EventAgentStarted || len(agent.Children) != 3 {
		t.Fatalf("unexpected agent node: %s with %d children", agent.EventType, len(agent.Children))
	}
	if buildTree(events, 999) != nil {
		t.Fatal("expected nil for unknown root")
	}
}

func TestFormatEvent(t *testing.T) {
	ev := &Event{
		ID:        7,
		Timestamp: 0,
		EventType: db.EventToolCallFailed,
		Payload:   sql.NullString{String: `{"kind":"EXECUTE","latency_ms":12,"error":"exit 1"}`, Valid: true},
	}
	got := formatEvent(ev, false)
	want := "[7] 1970-01-01 00:00:00  tool_call.failed  error=exit 1  kind=EXECUTE  latency_ms=12"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if got := formatEvent(ev, true); got != "[7] 1970-01-01 00:00:00  tool_call.failed" {
		t.Fatalf("unexpected no-payload line: %q", got)
	}
	ev.Payload = sql.NullString{}
	if got := formatEvent(ev, false); strings.Contains(got, "=") {
		t.Fatalf("null payload rendered fields: %q", got)
	}
}

func TestFormatValue(t *testing.T) {
	long := strings.Repeat("é", 100)
	got := formatValue(long)
	if !strings.HasSuffix(got, `..."`) || strings.Count(got, "é") != 80 {
		t.Fatalf("unexpected truncation: %s", got)
	}
	if formatValue(float64(42)) != "42" || formatValue(1.5) != "1.5" || formatValue(true) != "true" {
		t.Fatal("unexpected scalar formatting")
	}
}

func TestRun_DefaultTree(t *testing.T) {
	database, path := testDB(t)
	seedRunTree(t, database)

	out, stderr, code := runCLI(t, "-db", path)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	for _, want := range []string{
		"process.started", "agent.started", "turn.started", "command.parsed",
		"tool_call.completed", "agent.completed", "process.exited", "run_id=run-1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 9 || !strings.HasPrefix(lines[1], "├── ") || !strings.HasPrefix(lines[len(lines)-1], "└── ") {
		t.Fatalf("unexpected tree layout:\n%s", out)
	}
	if !strings.HasPrefix(lines[5], "│   │       └── ") {
		t.Fatalf("unexpected nesting for tool_call.completed: %q", lines[5])
	}
}

func TestRun_LatestRootWins(t *testing.T) {
	database, path := testDB(t)
	seedRunTree(t, database)
	latest, _ := db.LogEvent(database, nil, db.EventProcessStarted, map[string]any{"role": "agent", "provider": "ollama"})

	out, _, code := runCLI(t, "-db", path)
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if strings.TrimSpace(out) != formatEvent(&Event{ID: latest, Timestamp: eventTimestamp(t, database, latest), EventType: db.EventProcessStarted,
		Payload: sql.NullString{String: `{"provider":"ollama","role":"agent"}`, Valid: true}}, false) {
		t.Fatalf("expected only the latest root:\n%s", out)
	}
}

func eventTimestamp(t *testing.T, database *sql.DB, id int64) int64 {
	t.Helper()
	var ts int64
	if err := database.QueryRow(`SELECT timestamp FROM events WHERE id = ?`, id).Scan(&ts); err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestRun_DepthLimit(t *testing.T) {
	database, path := testDB(t)
	seedRunTree(t, database)

	out, _, code := runCLI(t, "-db", path, "-L", "2")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if strings.Contains(out, "turn.started") {
		t.Errorf("turn.started should be hidden at -L 2:\n%s", out)
	}
	if !strings.Contains(out, "│   └── [...]") {
		t.Errorf("expected [...] under agent.started:\n%s", out)
	}

	out, _, _ = runCLI(t, "-db", path, "-L", "1")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || lines[1] != "└── [...]" {
		t.Fatalf("unexpected -L 1 output:\n%s", out)
	}
}

func TestRun_SubtreeSelectors(t *testing.T) {
	database, path := testDB(t)
	seedRunTree(t, database)

	for _, args := range [][]string{{"-id", "2"}, {"-run", "run-1"}} {
		out, stderr, code := runCLI(t, append([]string{"-db", path}, args...)...)
		if code != 0 {
			t.Fatalf("%v: exit %d: %s", args, code, stderr)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if !strings.Contains(lines[0], "agent.started") {
			t.Errorf("%v: expected agent.started as root:\n%s", args, out)
		}
		if strings.Contains(out, "process.exited") {
			t.Errorf("%v: process.exited is outside the run:\n%s", args, out)
		}
	}

	_, stderr, code := runCLI(t, "-db", path, "-run", "missing")
	if code != 1 || !strings.Contains(stderr, "no run missing") {
		t.Fatalf("expected missing run error, got %d %q", code, stderr)
	}
}

func TestRun_JSON(t *testing.T) {
	database, path := testDB(t)
	seedRunTree(t, database)

	out, _, code := runCLI(t, "-db", path, "-json")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	var je jsonEvent
	if err := json.Unmarshal([]byte(out), &je); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if je.EventType != db.EventProcessStarted || len(je.Children) != 2 {
		t.Fatalf("unexpected root: %s with %d children", je.EventType, len(je.Children))
	}
	if len(je.Children[0].Children) != 3 {
		t.Fatalf("expected 3 agent children, got %d", len(je.Children[0].Children))
	}

	out, _, _ = runCLI(t, "-db", path, "-json", "-L", "2", "-no-payload")
	if err := json.Unmarshal([]byte(out), &je); err != nil {
		t.Fatal(err)
	}
	for _, child := range je.Children {
		if len(child.Children) > 0 || child.Payload != nil {
			t.Errorf("expected bare children at -L 2 -no-payload: %+v", child)
		}
	}
}

func TestRun_Actions(t *testing.T) {
	database, path := testDB(t)
	seedRunTree(t, database)

	out, _, code := runCLI(t, "-db", path, "-run", "run-1", "-actions")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.HasPrefix(out, "#1 ") || !strings.Contains(out, "ok      CREATE_FILE a.txt") {
		t.Fatalf("unexpected actions output: %q", out)
	}

	_, stderr, code := runCLI(t, "-db", path, "-actions")
	if code != 1 || !strings.Contains(stderr, "-actions requires -run") {
		t.Fatalf("expected usage error, got %d %q", code, stderr)
	}
}

func TestRun_EmptyDatabase(t *testing.T) {
	_, path := testDB(t)
	_, stderr, code := runCLI(t, "-db", path)
	if code != 1 || !strings.Contains(stderr, "no process.started event found") {
		t.Fatalf("expected missing root error, got %d %q", code, stderr)
	}
}
