package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/stupiduntilnot/termagent/internal/agent"
)

// renderer prints run progress for the operator.
type renderer struct {
	w io.Writer
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w}
}

func (r *renderer) render(e agent.Event) {
	switch e.Type {
	case agent.EventIteration:
		fmt.Fprintf(r.w, "\n%s iteration %d/%d\n", strings.Repeat("-", 20), e.Iteration, e.Max)
	case agent.EventReply:
		fmt.Fprintf(r.w, "\nAI:\n%s\n", strings.TrimSpace(e.Content))
	case agent.EventNoCommand:
		fmt.Fprintln(r.w, "! Invalid reply, no command recognized")
	case agent.EventCommand:
		fmt.Fprintf(r.w, "> Command: %s\n", e.Command.Kind)
		if e.Command.Reasoning != "" {
			fmt.Fprintf(r.w, "  Reasoning: %s\n", e.Command.Reasoning)
		}
	case agent.EventResult:
		if e.Result.Error != "" {
			fmt.Fprintf(r.w, "x Error: %s\n", e.Result.Error)
		} else {
			fmt.Fprintln(r.w, e.Result.Output)
		}
	case agent.EventCompacted:
		fmt.Fprintf(r.w, "~ History compacted (%s)\n", e.Content)
	case agent.EventFinished:
		r.finished(e)
	}
}

func (r *renderer) finished(e agent.Event) {
	switch e.Outcome {
	case agent.OutcomeDone:
		fmt.Fprintf(r.w, "\nTask completed in %d iteration(s).\n", e.Iteration)
	case agent.OutcomeMaxIterations:
		fmt.Fprintln(r.w, "\n! Maximum iterations reached")
	case agent.OutcomeTimeLimit:
		fmt.Fprintln(r.w, "\n! Time limit reached")
	case agent.OutcomeTransportError:
		fmt.Fprintf(r.w, "\nx AI communication error: %v\n", e.Err)
	case agent.OutcomeCancelled:
		fmt.Fprintln(r.w, "\nOperation cancelled.")
	case agent.OutcomeFault:
		fmt.Fprintf(r.w, "\nx Internal error: %v\n", e.Err)
	}
}
