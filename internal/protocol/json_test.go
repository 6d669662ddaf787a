package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject_NestedBraces(t *testing.T) {
	t.Parallel()

	got := ExtractJSONObject(`prefix {"a": {"b": 1}} suffix`)
	assert.Equal(t, `{"a": {"b": 1}}`, got)
}

func TestExtractJSONObject_Unclosed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", ExtractJSONObject(`no object here`))
	assert.Equal(t, "", ExtractJSONObject(`{"a": {"b": 1}`))
}

func TestExtractJSONObject_BracesInStrings(t *testing.T) {
	t.Parallel()

	text := `{"keyword": "CREATE_FILE", "content": "}"} trailing`
	// The default scan counts the brace inside the string and closes early.
	assert.Equal(t, `{"keyword": "CREATE_FILE", "content": "}`, ExtractJSONObject(text))
	assert.Equal(t, `{"keyword": "CREATE_FILE", "content": "}"}`, ExtractJSONObjectStrict(text))

	escaped := `{"content": "say \"{\" please"} rest`
	assert.Equal(t, `{"content": "say \"{\" please"}`, ExtractJSONObjectStrict(escaped))
}

func TestStripCodeFence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"a": 1}`, StripCodeFence("Here:\n```json\n{\"a\": 1}\n```\nbye"))
	assert.Equal(t, `{"a": 2}`, StripCodeFence("```\n{\"a\": 2}\n```"))
	assert.Equal(t, `{"a": 3}`, StripCodeFence("  {\"a\": 3}  "))
	assert.Equal(t, `{"a": 4}`, StripCodeFence("```json\n{\"a\": 4}"))
}

func TestJSONParser_Parse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want Command
	}{
		{
			name: "fenced create file",
			text: "Sure.\n```json\n{\"reasoning\": \"need a file\", \"keyword\": \"CREATE_FILE\", \"path\": \"a.txt\", \"content\": \"x\\n\"}\n```",
			want: Command{Kind: KindCreateFile, Path: "a.txt", Content: "x\n", Reasoning: "need a file"},
		},
		{
			name: "edit file",
			text: `{"reasoning": "fix", "keyword": "edit_file", "path": "a.go", "old_content": "foo", "new_content": "bar"}`,
			want: Command{Kind: KindEditFile, Path: "a.go", OldContent: "foo", NewContent: "bar", Reasoning: "fix"},
		},
		{
			name: "execute shell alias",
			text: `{"reasoning": "run", "keyword": "EXECUTE_SHELL", "command": "ls -la"}`,
			want: Command{Kind: KindExecute, Command: "ls -la", Reasoning: "run"},
		},
		{
			name: "search files alias quotes the term",
			text: `{"reasoning": "find", "keyword": "SEARCH_FILES", "term": "main.go"}`,
			want: Command{Kind: KindSearch, Pattern: `main\.go`, Path: ".", Reasoning: "find"},
		},
		{
			name: "list files alias",
			text: `{"reasoning": "look", "keyword": "LIST_FILES", "pattern": "*"}`,
			want: Command{Kind: KindListDir, Path: ".", Reasoning: "look"},
		},
		{
			name: "modify append",
			text: `{"reasoning": "log", "keyword": "MODIFY_FILE", "path": "l.txt", "content": "row\n", "mode": "append"}`,
			want: Command{Kind: KindAppendFile, Path: "l.txt", Content: "row\n", Reasoning: "log"},
		},
		{
			name: "modify replace",
			text: `{"reasoning": "rw", "keyword": "MODIFY_FILE", "path": "l.txt", "content": "all"}`,
			want: Command{Kind: KindCreateFile, Path: "l.txt", Content: "all", Reasoning: "rw"},
		},
		{
			name: "tree numeric depth",
			text: `{"reasoning": "r", "keyword": "TREE", "depth": 2}`,
			want: Command{Kind: KindTree, Path: ".", Depth: 2, Reasoning: "r"},
		},
		{
			name: "move file",
			text: `{"reasoning": "r", "keyword": "MOVE_FILE", "source": "a", "destination": "b"}`,
			want: Command{Kind: KindMoveFile, Source: "a", Destination: "b", Reasoning: "r"},
		},
		{
			name: "get info alias",
			text: `{"reasoning": "r", "keyword": "GET_INFO", "path": "a"}`,
			want: Command{Kind: KindFileInfo, Path: "a", Reasoning: "r"},
		},
		{
			name: "done with message",
			text: `I'm finished. {"reasoning": "verified", "keyword": "DONE", "message": "All set."} Thanks!`,
			want: Command{Kind: KindDone, Message: "All set.", Reasoning: "verified"},
		},
	}

	p := &JSONParser{}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := p.Parse(tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestJSONParser_Errors(t *testing.T) {
	t.Parallel()

	p := &JSONParser{}
	for _, text := range []string{
		"no json at all",
		`{"reasoning": "x"}`,
		`{"reasoning": "x", "keyword": "LAUNCH_ROCKET"}`,
		`{"reasoning": "x", "keyword": "READ_FILE"}`,
		`{"reasoning": "x", "keyword": "MODIFY_FILE", "path": "a", "content": "b", "mode": "prepend"}`,
		`{"reasoning": "x", "keyword": }`,
	} {
		_, err := p.Parse(text)
		assert.ErrorIs(t, err, ErrNoCommand, "text: %q", text)
	}
}

func TestJSONParser_StringAware(t *testing.T) {
	t.Parallel()

	text := `{"reasoning": "r", "keyword": "CREATE_FILE", "path": "m.go", "content": "func main() {}"}`

	got, err := (&JSONParser{StringAware: true}).Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "func main() {}", got.Content)

	// Balanced braces in strings are harmless to the default scan as well.
	got, err = (&JSONParser{}).Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "func main() {}", got.Content)

	_, err = (&JSONParser{}).Parse(`{"reasoning": "r", "keyword": "CREATE_FILE", "path": "a", "content": "}"}`)
	assert.ErrorIs(t, err, ErrNoCommand)
}

func TestJSONParser_RequireReasoning(t *testing.T) {
	t.Parallel()

	p := &JSONParser{RequireReasoning: true}
	_, err := p.Parse(`{"keyword": "DONE", "message": "ok"}`)
	assert.ErrorIs(t, err, ErrNoCommand)

	got, err := (&JSONParser{}).Parse(`{"keyword": "DONE", "message": "ok"}`)
	require.NoError(t, err)
	assert.Equal(t, KindDone, got.Kind)
}
