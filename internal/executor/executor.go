package executor

import (
	"context"
	"fmt"
	"sort"

	"github.com/stupiduntilnot/termagent/internal/confirm"
	"github.com/stupiduntilnot/termagent/internal/protocol"
	"github.com/stupiduntilnot/termagent/internal/tool"
)

// CancelledMessage is the output of an operation the user declined.
const CancelledMessage = "Operation cancelled by user"

// Handler runs one command kind.
type Handler func(ctx context.Context, cmd protocol.Command) tool.Result

// Executor dispatches parsed commands to the file and shell tools. It does
// no path handling of its own; confinement belongs to the tools.
type Executor struct {
	files    *tool.FileTools
	system   *tool.SystemTools
	safeMode bool
	confirm  confirm.Confirmer

	handlers map[protocol.Kind]Handler
}

// New builds an executor with every built-in command registered. A nil
// confirmer declines every gated operation.
func New(files *tool.FileTools, system *tool.SystemTools, safeMode bool, confirmer confirm.Confirmer) *Executor {
	if confirmer == nil {
		confirmer = confirm.Never
	}
	e := &Executor{
		files:    files,
		system:   system,
		safeMode: safeMode,
		confirm:  confirmer,
		handlers: map[protocol.Kind]Handler{},
	}
	e.registerBuiltins()
	return e
}

// Register adds a handler for kind. Kinds cannot be registered twice.
func (e *Executor) Register(kind protocol.Kind, h Handler) error {
	if h == nil {
		return fmt.Errorf("handler is nil")
	}
	if _, exists := e.handlers[kind]; exists {
		return fmt.Errorf("handler already registered: %s", kind)
	}
	e.handlers[kind] = h
	return nil
}

// Kinds lists the registered kinds in declaration order.
func (e *Executor) Kinds() []protocol.Kind {
	out := make([]protocol.Kind, 0, len(e.handlers))
	for k := range e.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Execute runs cmd and reports whether it completed the task.
func (e *Executor) Execute(ctx context.Context, cmd protocol.Command) (tool.Result, bool) {
	if cmd.Kind == protocol.KindDone {
		return tool.OK("Task completed!\n" + cmd.Message), true
	}
	h, ok := e.handlers[cmd.Kind]
	if !ok {
		return tool.Fail(fmt.Errorf("unknown command: %s", cmd.Kind)), false
	}
	if prompt, gated := e.gate(cmd); gated && !e.approve(ctx, prompt) {
		return tool.Declined(CancelledMessage), false
	}
	return h(ctx, cmd), false
}

func (e *Executor) approve(ctx context.Context, prompt string) bool {
	if cc, ok := e.confirm.(confirm.ContextConfirmer); ok {
		return cc.ConfirmContext(ctx, prompt)
	}
	return e.confirm.Confirm(prompt)
}

// gate returns the confirmation prompt for operations that need one.
func (e *Executor) gate(cmd protocol.Command) (string, bool) {
	if !e.safeMode {
		return "", false
	}
	switch cmd.Kind {
	case protocol.KindDeleteFile:
		return fmt.Sprintf("Delete file %s?", cmd.Path), true
	case protocol.KindDeleteDir:
		return fmt.Sprintf("Delete directory %s and all of its contents?", cmd.Path), true
	case protocol.KindExecute:
		if e.system.IsDangerous(cmd.Command) {
			return fmt.Sprintf("Run potentially dangerous command?\n%s", cmd.Command), true
		}
	}
	return "", false
}

func (e *Executor) registerBuiltins() {
	f := e.files
	builtins := map[protocol.Kind]Handler{
		protocol.KindCreateFile: func(_ context.Context, c protocol.Command) tool.Result { return f.CreateFile(c.Path, c.Content) },
		protocol.KindReadFile:   func(_ context.Context, c protocol.Command) tool.Result { return f.ReadFile(c.Path) },
		protocol.KindEditFile: func(_ context.Context, c protocol.Command) tool.Result {
			return f.EditFile(c.Path, c.OldContent, c.NewContent)
		},
		protocol.KindDeleteFile: func(_ context.Context, c protocol.Command) tool.Result { return f.DeleteFile(c.Path) },
		protocol.KindAppendFile: func(_ context.Context, c protocol.Command) tool.Result { return f.AppendFile(c.Path, c.Content) },
		protocol.KindCreateDir:  func(_ context.Context, c protocol.Command) tool.Result { return f.CreateDir(c.Path) },
		protocol.KindListDir:    func(_ context.Context, c protocol.Command) tool.Result { return f.ListDir(c.Path) },
		protocol.KindDeleteDir:  func(_ context.Context, c protocol.Command) tool.Result { return f.DeleteDir(c.Path) },
		protocol.KindExecute: func(ctx context.Context, c protocol.Command) tool.Result {
			return e.system.Execute(ctx, c.Command)
		},
		protocol.KindSearch: func(_ context.Context, c protocol.Command) tool.Result { return f.Search(c.Pattern, c.Path) },
		protocol.KindTree:   func(_ context.Context, c protocol.Command) tool.Result { return f.Tree(c.Path, c.Depth) },
		protocol.KindRespond: func(_ context.Context, c protocol.Command) tool.Result {
			return tool.OK(c.Message)
		},
		protocol.KindMoveFile: func(_ context.Context, c protocol.Command) tool.Result {
			return f.MoveFile(c.Source, c.Destination)
		},
		protocol.KindCopyFile: func(_ context.Context, c protocol.Command) tool.Result {
			return f.CopyFile(c.Source, c.Destination)
		},
		protocol.KindFileInfo: func(_ context.Context, c protocol.Command) tool.Result { return f.FileInfo(c.Path) },
	}
	for k, h := range builtins {
		// Built-in kinds are unique keys of the map above.
		_ = e.Register(k, h)
	}
}
