package protocol

import (
	"errors"
	"strings"
)

// ErrNoCommand is returned when a reply contains no recognizable command.
// Callers treat it as a protocol violation, not a tool failure.
var ErrNoCommand = errors.New("no command found")

// Kind is one member of the closed set of agent-invocable operations.
// Declaration order is also the tagged parser's match priority.
type Kind int

const (
	KindCreateFile Kind = iota + 1
	KindReadFile
	KindEditFile
	KindDeleteFile
	KindAppendFile
	KindCreateDir
	KindListDir
	KindDeleteDir
	KindExecute
	KindSearch
	KindTree
	KindRespond
	KindDone
	KindMoveFile
	KindCopyFile
	KindFileInfo
)

var kindNames = map[Kind]string{
	KindCreateFile: "CREATE_FILE",
	KindReadFile:   "READ_FILE",
	KindEditFile:   "EDIT_FILE",
	KindDeleteFile: "DELETE_FILE",
	KindAppendFile: "APPEND_FILE",
	KindCreateDir:  "CREATE_DIR",
	KindListDir:    "LIST_DIR",
	KindDeleteDir:  "DELETE_DIR",
	KindExecute:    "EXECUTE",
	KindSearch:     "SEARCH",
	KindTree:       "TREE",
	KindRespond:    "RESPOND",
	KindDone:       "DONE",
	KindMoveFile:   "MOVE_FILE",
	KindCopyFile:   "COPY_FILE",
	KindFileInfo:   "FILE_INFO",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseKind maps a keyword (any case) to its Kind.
func ParseKind(keyword string) (Kind, bool) {
	keyword = strings.ToUpper(strings.TrimSpace(keyword))
	for k, name := range kindNames {
		if name == keyword {
			return k, true
		}
	}
	return 0, false
}

const (
	DefaultSearchPath = "."
	DefaultTreePath   = "."
	DefaultTreeDepth  = 3
)

// Command is one parsed operation. Only the fields relevant to Kind are set.
type Command struct {
	Kind Kind

	Path        string
	Content     string
	OldContent  string
	NewContent  string
	Command     string
	Pattern     string
	Depth       int
	Message     string
	Source      string
	Destination string

	// Reasoning is the model's stated rationale (JSON protocol only).
	Reasoning string
}

// Parser extracts at most one command from a raw model reply.
type Parser interface {
	Parse(text string) (Command, error)
}

// New returns the parser for the named protocol ("tagged" or "json").
func New(name string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "tagged":
		return &TaggedParser{}, nil
	case "json":
		return &JSONParser{}, nil
	default:
		return nil, errors.New("unknown protocol: " + name)
	}
}
