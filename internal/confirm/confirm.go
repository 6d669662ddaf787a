package confirm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Confirmer answers yes/no before a destructive or dangerous operation.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ContextConfirmer is a Confirmer whose prompt gives up when ctx is done.
type ContextConfirmer interface {
	Confirmer
	ConfirmContext(ctx context.Context, prompt string) bool
}

// Func adapts a plain function to Confirmer.
type Func func(prompt string) bool

func (f Func) Confirm(prompt string) bool { return f(prompt) }

var (
	// Always approves every prompt.
	Always = Func(func(string) bool { return true })
	// Never declines every prompt.
	Never = Func(func(string) bool { return false })
)

var affirmative = map[string]bool{
	"y":   true,
	"yes": true,
	"s":   true,
	"si":  true,
	"sì":  true,
}

// IsAffirmative reports whether answer is one of the accepted yes tokens.
func IsAffirmative(answer string) bool {
	return affirmative[strings.ToLower(strings.TrimSpace(answer))]
}

// Terminal prompts on Out and reads answers from In. A single goroutine
// reads In line by line, so the REPL and the prompt share one input stream
// and a prompt abandoned on cancellation never swallows the next line.
// End of input counts as a decline.
type Terminal struct {
	Out io.Writer

	mu     sync.Mutex
	reader *bufio.Reader
	once   sync.Once
	lines  chan inputLine
}

type inputLine struct {
	text string
	err  error
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{Out: out, reader: bufio.NewReader(in), lines: make(chan inputLine)}
}

func (t *Terminal) pump() {
	defer close(t.lines)
	for {
		text, err := t.reader.ReadString('\n')
		t.lines <- inputLine{text: text, err: err}
		if err != nil {
			return
		}
	}
}

// ReadLine returns the next input line, including its line break. It returns
// ctx.Err() when ctx ends first; the pending line is then kept for the next
// call.
func (t *Terminal) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.once.Do(func() { go t.pump() })
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-t.lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	}
}

func (t *Terminal) Confirm(prompt string) bool {
	return t.ConfirmContext(context.Background(), prompt)
}

// ConfirmContext declines when ctx ends before an answer arrives.
func (t *Terminal) ConfirmContext(ctx context.Context, prompt string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.Out, "\n%s\nConfirm? (y/n): ", prompt)
	line, err := t.ReadLine(ctx)
	if err != nil && line == "" {
		return false
	}
	return IsAffirmative(line)
}
