package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	ctxpkg "github.com/stupiduntilnot/termagent/internal/context"
	"github.com/stupiduntilnot/termagent/internal/control"
	"github.com/stupiduntilnot/termagent/internal/db"
	"github.com/stupiduntilnot/termagent/internal/logs"
	modelpkg "github.com/stupiduntilnot/termagent/internal/model"
	"github.com/stupiduntilnot/termagent/internal/prompts"
	"github.com/stupiduntilnot/termagent/internal/protocol"
	"github.com/stupiduntilnot/termagent/internal/tool"
)

// Executor runs one parsed command and reports whether it completed the task.
type Executor interface {
	Execute(ctx context.Context, cmd protocol.Command) (tool.Result, bool)
}

// Options wires an Agent. Provider, Parser and Executor are required.
type Options struct {
	Provider modelpkg.Provider
	Parser   protocol.Parser
	Executor Executor
	Prompts  prompts.Set

	// Compressor compacts history before each user turn. Nil disables it.
	Compressor ctxpkg.Compressor
	Assembler  ctxpkg.Assembler
	Policy     control.Policy

	Logger *slog.Logger
	// DB, when set, receives the run's event tree and action log.
	DB            *sql.DB
	ParentEventID int64
	OnEvent       func(Event)
}

// Action is one entry of the in-memory action log.
type Action struct {
	Time      time.Time
	Iteration int
	Kind      protocol.Kind
	Summary   string
	Success   bool
}

// Agent drives the reply, parse, execute, feedback loop. The conversation
// persists across Run calls until Reset. An Agent is not safe for concurrent
// use.
type Agent struct {
	provider   modelpkg.Provider
	parser     protocol.Parser
	executor   Executor
	prompts    prompts.Set
	compressor ctxpkg.Compressor
	assembler  ctxpkg.Assembler
	policy     control.Policy
	logger     *slog.Logger
	database   *sql.DB
	parentID   int64
	onEvent    func(Event)
	now        func() time.Time

	// history excludes the system prompt; history[0] is the first task.
	history []ctxpkg.Message
	actions []Action
}

func New(opts Options) (*Agent, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("agent: provider is required")
	}
	if opts.Parser == nil {
		return nil, fmt.Errorf("agent: parser is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("agent: executor is required")
	}
	if opts.Prompts.System == "" || opts.Prompts.Continue == nil {
		opts.Prompts = prompts.For("tagged")
	}
	if opts.Assembler == nil {
		opts.Assembler = &ctxpkg.StandardAssembler{}
	}
	if opts.Policy.MaxIterations == 0 {
		opts.Policy.MaxIterations = control.DefaultMaxIterations
	}
	if opts.Logger == nil {
		opts.Logger = logs.Discard()
	}
	return &Agent{
		provider:   opts.Provider,
		parser:     opts.Parser,
		executor:   opts.Executor,
		prompts:    opts.Prompts,
		compressor: opts.Compressor,
		assembler:  opts.Assembler,
		policy:     opts.Policy,
		logger:     opts.Logger,
		database:   opts.DB,
		parentID:   opts.ParentEventID,
		onEvent:    opts.OnEvent,
		now:        time.Now,
	}, nil
}

// Messages returns the conversation as sent to the model: the system prompt
// followed by the history.
func (a *Agent) Messages() []ctxpkg.Message {
	return a.assembler.Assemble(a.prompts.System, a.history)
}

// Actions returns a copy of the action log.
func (a *Agent) Actions() []Action {
	return append([]Action(nil), a.actions...)
}

// Reset clears the conversation. The action log is kept.
func (a *Agent) Reset() {
	a.history = nil
}

type faultError struct {
	value any
	stack []byte
}

func (e *faultError) Error() string {
	return fmt.Sprintf("internal fault: %v", e.value)
}

type run struct {
	id      string
	eventID int64
	summary string
	// task is the history index of this run's task message, or -1 before
	// it is appended.
	task int
}

// Run appends task to the conversation and loops until the model signals
// DONE, a limit is reached, the provider fails, ctx is cancelled, or an
// iteration faults.
func (a *Agent) Run(ctx context.Context, task string) Result {
	r := &run{id: uuid.NewString(), task: -1}
	ctx = logs.WithRunID(ctx, r.id)
	startedAt := a.now()

	r.eventID = a.logEvent(a.parentID, db.EventAgentStarted, map[string]any{
		"run_id":         r.id,
		"task":           truncate(redactSecrets(task), 500),
		"max_iterations": a.policy.MaxIterations,
	})
	a.logger.InfoContext(ctx, "run started", "task", truncate(task, 200))

	a.appendUser(ctx, r, task)
	r.task = len(a.history) - 1

	res := Result{RunID: r.id}
	for {
		if err := ctx.Err(); err != nil {
			res.Outcome, res.Err = OutcomeCancelled, err
			break
		}
		if err := control.CheckIterationLimit(a.policy, res.Iterations); err != nil {
			a.recordLimit(ctx, r, err)
			res.Outcome, res.Err = OutcomeMaxIterations, err
			break
		}
		if err := control.CheckWallTime(a.policy, startedAt, a.now()); err != nil {
			a.recordLimit(ctx, r, err)
			res.Outcome, res.Err = OutcomeTimeLimit, err
			break
		}
		res.Iterations++

		done, err := a.iterate(ctx, r, res.Iterations)
		if err != nil {
			var fault *faultError
			switch {
			case errors.As(err, &fault):
				a.logger.ErrorContext(ctx, "iteration fault", "error", err, "stack", string(fault.stack))
				res.Outcome = OutcomeFault
			case ctx.Err() != nil:
				res.Outcome = OutcomeCancelled
			default:
				res.Outcome = OutcomeTransportError
			}
			res.Err = err
			break
		}
		if done {
			res.Outcome, res.Summary = OutcomeDone, r.summary
			break
		}
	}

	a.finish(ctx, r, res)
	return res
}

// iterate runs one reply, parse, execute, feedback cycle. A panic anywhere
// in the cycle is returned as a *faultError.
func (a *Agent) iterate(ctx context.Context, r *run, n int) (done bool, err error) {
	defer func() {
		if v := recover(); v != nil {
			done, err = false, &faultError{value: v, stack: debug.Stack()}
		}
	}()

	a.emit(Event{Type: EventIteration, Iteration: n, Max: a.policy.MaxIterations})
	turnID := a.logEvent(r.eventID, db.EventTurnStarted, map[string]any{"iteration": n})

	turnStart := a.now()
	resp, err := a.provider.ChatCompletion(ctx, a.Messages())
	if err != nil {
		return false, fmt.Errorf("model: %w", err)
	}
	a.logEvent(r.eventID, db.EventTurnCompleted, map[string]any{
		"iteration":     n,
		"latency_ms":    a.now().Sub(turnStart).Milliseconds(),
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
	})
	reply := resp.Content
	a.emit(Event{Type: EventReply, Iteration: n, Content: reply})

	cmd, perr := a.parser.Parse(reply)
	if perr != nil {
		a.logger.DebugContext(ctx, "no command in reply", "iteration", n, "error", perr)
		a.logEvent(turnID, db.EventCommandRejected, map[string]any{
			"error": perr.Error(),
			"reply": truncate(redactSecrets(reply), 500),
		})
		a.emit(Event{Type: EventNoCommand, Iteration: n, Content: a.prompts.Corrective})
		a.history = append(a.history, ctxpkg.Message{Role: ctxpkg.RoleAssistant, Content: reply})
		a.appendUser(ctx, r, a.prompts.Corrective)
		return false, nil
	}

	summary := describe(cmd)
	a.logger.InfoContext(ctx, "command parsed", "iteration", n, "kind", cmd.Kind.String(), "target", truncate(summary, 200))
	a.logEvent(turnID, db.EventCommandParsed, map[string]any{
		"kind":      cmd.Kind.String(),
		"reasoning": truncate(redactSecrets(cmd.Reasoning), 500),
	})
	a.emit(Event{Type: EventCommand, Iteration: n, Command: &cmd})

	toolID := a.logEvent(turnID, db.EventToolCallStarted, map[string]any{
		"kind":   cmd.Kind.String(),
		"target": truncate(redactSecrets(summary), 500),
	})
	started := a.now()
	result, done := a.executor.Execute(ctx, cmd)
	a.recordResult(ctx, r, toolID, n, cmd, summary, result, a.now().Sub(started))
	a.emit(Event{Type: EventResult, Iteration: n, Command: &cmd, Result: &result})

	a.history = append(a.history, ctxpkg.Message{Role: ctxpkg.RoleAssistant, Content: reply})
	if done {
		r.summary = cmd.Message
		return true, nil
	}
	a.appendUser(ctx, r, a.prompts.Continue(result.Feedback()))
	return false, nil
}

// appendUser compacts the history, then appends a user turn, so the model
// never sees a turn that is dropped later in the same exchange. Anchor-aware
// compressors keep the current run's task rather than the session's first.
func (a *Agent) appendUser(ctx context.Context, r *run, content string) {
	if a.compressor != nil {
		before := len(a.history)
		if ac, ok := a.compressor.(ctxpkg.AnchorCompressor); ok {
			a.history, r.task = ac.CompressAt(a.history, r.task)
		} else {
			a.history = a.compressor.Compress(a.history)
		}
		if after := len(a.history); after < before {
			a.logger.InfoContext(ctx, "history compacted", "before", before, "after", after)
			a.logEvent(r.eventID, db.EventContextCompacted, map[string]any{
				"original_count":   before,
				"compressed_count": after,
			})
			a.emit(Event{Type: EventCompacted, Content: fmt.Sprintf("%d -> %d messages", before, after)})
		}
	}
	a.history = append(a.history, ctxpkg.Message{Role: ctxpkg.RoleUser, Content: content})
}

func (a *Agent) recordResult(ctx context.Context, r *run, toolID int64, n int, cmd protocol.Command, summary string, res tool.Result, elapsed time.Duration) {
	a.actions = append(a.actions, Action{
		Time:      a.now(),
		Iteration: n,
		Kind:      cmd.Kind,
		Summary:   summary,
		Success:   res.Success,
	})

	payload := map[string]any{
		"kind":       cmd.Kind.String(),
		"latency_ms": elapsed.Milliseconds(),
	}
	eventType := db.EventToolCallDone
	switch {
	case res.Success:
	case res.Error == "":
		eventType = db.EventToolCallDeclined
		payload["message"] = res.Output
	default:
		eventType = db.EventToolCallFailed
		payload["error"] = truncate(redactSecrets(res.Error), 500)
	}
	a.logEvent(toolID, eventType, payload)
	a.logger.InfoContext(ctx, "command executed", "iteration", n, "kind", cmd.Kind.String(), "success", res.Success)

	if a.database == nil {
		return
	}
	err := db.RecordAction(a.database, db.Action{
		RunID:     r.id,
		Iteration: n,
		Action:    truncate(redactSecrets(cmd.Kind.String()+" "+summary), 500),
		Success:   res.Success,
		Result:    truncate(redactSecrets(res.Feedback()), 2000),
	})
	if err != nil {
		a.logger.WarnContext(ctx, "record action failed", "error", err)
	}
}

func (a *Agent) recordLimit(ctx context.Context, r *run, err error) {
	var limitErr *control.LimitError
	if !errors.As(err, &limitErr) {
		return
	}
	a.logger.WarnContext(ctx, "limit reached", "type", string(limitErr.Type), "value", limitErr.Value, "threshold", limitErr.Threshold)
	a.logEvent(r.eventID, db.EventControlLimitReached, map[string]any{
		"limit_type": string(limitErr.Type),
		"value":      limitErr.Value,
		"threshold":  limitErr.Threshold,
	})
}

func (a *Agent) finish(ctx context.Context, r *run, res Result) {
	a.emit(Event{Type: EventFinished, Iteration: res.Iterations, Outcome: res.Outcome, Content: res.Summary, Err: res.Err})
	if res.Outcome == OutcomeDone {
		a.logger.InfoContext(ctx, "run completed", "iterations", res.Iterations)
		a.logEvent(r.eventID, db.EventAgentCompleted, map[string]any{
			"iterations": res.Iterations,
			"summary":    truncate(redactSecrets(res.Summary), 500),
		})
		return
	}
	a.logger.WarnContext(ctx, "run ended", "outcome", res.Outcome.String(), "iterations", res.Iterations, "error", res.Err)
	payload := map[string]any{
		"outcome":    res.Outcome.String(),
		"iterations": res.Iterations,
	}
	if res.Err != nil {
		payload["error"] = truncate(redactSecrets(res.Err.Error()), 500)
	}
	a.logEvent(r.eventID, db.EventAgentFailed, payload)
}

func (a *Agent) emit(e Event) {
	if a.onEvent != nil {
		a.onEvent(e)
	}
}

// logEvent writes to the event tree when a database is attached. Failures
// are logged and otherwise ignored; the run never depends on the audit log.
func (a *Agent) logEvent(parentID int64, eventType string, payload map[string]any) int64 {
	if a.database == nil {
		return 0
	}
	var parent *int64
	if parentID > 0 {
		parent = &parentID
	}
	id, err := db.LogEvent(a.database, parent, eventType, payload)
	if err != nil {
		a.logger.Warn("log event failed", "event_type", eventType, "error", err)
		return 0
	}
	return id
}

// describe renders the target of a command for logs and the action log.
func describe(cmd protocol.Command) string {
	switch cmd.Kind {
	case protocol.KindExecute:
		return cmd.Command
	case protocol.KindSearch:
		return cmd.Pattern + " in " + cmd.Path
	case protocol.KindTree:
		return fmt.Sprintf("%s (depth %d)", cmd.Path, cmd.Depth)
	case protocol.KindMoveFile, protocol.KindCopyFile:
		return cmd.Source + " -> " + cmd.Destination
	case protocol.KindRespond, protocol.KindDone:
		return truncate(strings.TrimSpace(cmd.Message), 80)
	}
	return cmd.Path
}
