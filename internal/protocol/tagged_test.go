package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaggedParser_AllKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want Command
	}{
		{
			name: "create file",
			text: "Creo il file.\n[CREATE_FILE]\npath:  hello.py \ncontent:\nprint(\"hi\")\n    indented()\n[/CREATE_FILE]",
			want: Command{Kind: KindCreateFile, Path: "hello.py", Content: "print(\"hi\")\n    indented()\n"},
		},
		{
			name: "read file",
			text: "[READ_FILE]\npath: dir/a.txt\n[/READ_FILE]",
			want: Command{Kind: KindReadFile, Path: "dir/a.txt"},
		},
		{
			name: "edit file",
			text: "[EDIT_FILE]\npath: a.txt\nold_content:\nfoo()\nnew_content:\nbar()\n[/EDIT_FILE]",
			want: Command{Kind: KindEditFile, Path: "a.txt", OldContent: "foo()", NewContent: "bar()"},
		},
		{
			name: "delete file",
			text: "[DELETE_FILE] path: old.log [/DELETE_FILE]",
			want: Command{Kind: KindDeleteFile, Path: "old.log"},
		},
		{
			name: "append file keeps body verbatim",
			text: "[APPEND_FILE]\npath: log.txt\ncontent:\n  line \n\n[/APPEND_FILE]",
			want: Command{Kind: KindAppendFile, Path: "log.txt", Content: "  line \n\n"},
		},
		{
			name: "create dir",
			text: "[CREATE_DIR]\npath: src/pkg\n[/CREATE_DIR]",
			want: Command{Kind: KindCreateDir, Path: "src/pkg"},
		},
		{
			name: "list dir",
			text: "[LIST_DIR]\npath: .\n[/LIST_DIR]",
			want: Command{Kind: KindListDir, Path: "."},
		},
		{
			name: "delete dir",
			text: "[DELETE_DIR]\npath: build\n[/DELETE_DIR]",
			want: Command{Kind: KindDeleteDir, Path: "build"},
		},
		{
			name: "execute",
			text: "[EXECUTE]\ncommand:   python hello.py  \n[/EXECUTE]",
			want: Command{Kind: KindExecute, Command: "python hello.py"},
		},
		{
			name: "search with path",
			text: "[SEARCH]\npattern: \\.go$\npath: src\n[/SEARCH]",
			want: Command{Kind: KindSearch, Pattern: `\.go$`, Path: "src"},
		},
		{
			name: "search default path",
			text: "[SEARCH]\npattern: main\n[/SEARCH]",
			want: Command{Kind: KindSearch, Pattern: "main", Path: "."},
		},
		{
			name: "tree defaults",
			text: "[TREE][/TREE]",
			want: Command{Kind: KindTree, Path: ".", Depth: 3},
		},
		{
			name: "tree with path and depth",
			text: "[TREE]\npath: src\ndepth: 1\n[/TREE]",
			want: Command{Kind: KindTree, Path: "src", Depth: 1},
		},
		{
			name: "tree depth only",
			text: "[TREE]\ndepth: 5\n[/TREE]",
			want: Command{Kind: KindTree, Path: ".", Depth: 5},
		},
		{
			name: "respond",
			text: "[RESPOND]\n Sto bene, grazie! \n[/RESPOND]",
			want: Command{Kind: KindRespond, Message: "Sto bene, grazie!"},
		},
		{
			name: "done",
			text: "[DONE]\nCreated hello.py\n[/DONE]",
			want: Command{Kind: KindDone, Message: "Created hello.py"},
		},
		{
			name: "move file",
			text: "[MOVE_FILE]\nsource: a.txt\ndestination: b/a.txt\n[/MOVE_FILE]",
			want: Command{Kind: KindMoveFile, Source: "a.txt", Destination: "b/a.txt"},
		},
		{
			name: "copy file",
			text: "[COPY_FILE]\nsource: a.txt\ndestination: a.bak\n[/COPY_FILE]",
			want: Command{Kind: KindCopyFile, Source: "a.txt", Destination: "a.bak"},
		},
		{
			name: "file info",
			text: "[FILE_INFO]\npath: a.txt\n[/FILE_INFO]",
			want: Command{Kind: KindFileInfo, Path: "a.txt"},
		},
	}

	p := &TaggedParser{}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := p.Parse(tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTaggedParser_CaseInsensitive(t *testing.T) {
	t.Parallel()

	got, err := (&TaggedParser{}).Parse("[read_file]\nPATH: a.txt\n[/Read_File]")
	require.NoError(t, err)
	assert.Equal(t, Command{Kind: KindReadFile, Path: "a.txt"}, got)
}

func TestTaggedParser_NoCommand(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"",
		"I think we should create a file first.",
		"[CREATE_FILE]\npath: a.txt\ncontent: never closed",
		"[UNKNOWN]\npath: a\n[/UNKNOWN]",
	} {
		_, err := (&TaggedParser{}).Parse(text)
		assert.ErrorIs(t, err, ErrNoCommand, "text: %q", text)
	}
}

func TestTaggedParser_PriorityIsDeclarationOrder(t *testing.T) {
	t.Parallel()

	// DONE appears first in the text, but READ_FILE is declared earlier.
	text := "[DONE]\nall good\n[/DONE]\n[READ_FILE]\npath: a.txt\n[/READ_FILE]"
	got, err := (&TaggedParser{}).Parse(text)
	require.NoError(t, err)
	assert.Equal(t, KindReadFile, got.Kind)
}

func TestTaggedParser_MalformedMatchFallsThrough(t *testing.T) {
	t.Parallel()

	// The READ_FILE block has a blank path, so parsing continues to DONE.
	text := "[READ_FILE]\npath: \n[/READ_FILE]\n[DONE]\nfinished\n[/DONE]"
	got, err := (&TaggedParser{}).Parse(text)
	require.NoError(t, err)
	assert.Equal(t, Command{Kind: KindDone, Message: "finished"}, got)
}

func TestNew(t *testing.T) {
	t.Parallel()

	p, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &TaggedParser{}, p)

	p, err = New("JSON")
	require.NoError(t, err)
	assert.IsType(t, &JSONParser{}, p)

	_, err = New("xml")
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "EDIT_FILE", KindEditFile.String())
	assert.Equal(t, "UNKNOWN", Kind(0).String())

	k, ok := ParseKind(" delete_dir ")
	assert.True(t, ok)
	assert.Equal(t, KindDeleteDir, k)
}
