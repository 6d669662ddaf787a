package agent

import (
	"github.com/stupiduntilnot/termagent/internal/protocol"
	"github.com/stupiduntilnot/termagent/internal/tool"
)

// Outcome is how a run ended. Callers tell the cases apart by value.
type Outcome int

const (
	OutcomeDone Outcome = iota + 1
	OutcomeMaxIterations
	OutcomeTimeLimit
	OutcomeTransportError
	OutcomeCancelled
	OutcomeFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeMaxIterations:
		return "max_iterations"
	case OutcomeTimeLimit:
		return "time_limit"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFault:
		return "fault"
	}
	return "unknown"
}

// Result summarizes a finished run.
type Result struct {
	RunID      string
	Outcome    Outcome
	Iterations int
	// Summary is the DONE message, set only for OutcomeDone.
	Summary string
	// Err is set for every outcome except OutcomeDone.
	Err error
}

// EventType names the progress notifications a run emits.
type EventType string

const (
	EventIteration EventType = "iteration"
	EventReply     EventType = "reply"
	EventNoCommand EventType = "no_command"
	EventCommand   EventType = "command"
	EventResult    EventType = "result"
	EventCompacted EventType = "compacted"
	EventFinished  EventType = "finished"
)

// Event is one progress notification. Only the fields relevant to Type are
// set.
type Event struct {
	Type      EventType
	Iteration int
	Max       int
	Content   string
	Command   *protocol.Command
	Result    *tool.Result
	Outcome   Outcome
	Err       error
}
