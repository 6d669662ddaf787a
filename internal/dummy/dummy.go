package dummy

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	ctxpkg "github.com/stupiduntilnot/termagent/internal/context"
	modelpkg "github.com/stupiduntilnot/termagent/internal/model"
)

type action struct {
	kind string
	arg  string
}

// parseScript reads a comma-separated action list:
// ok, err:<class>, sleep:<ms>, msg:<text>, msgb64:<base64 text>.
func parseScript(script string) ([]action, error) {
	if strings.TrimSpace(script) == "" {
		return []action{{kind: "ok"}}, nil
	}
	parts := strings.Split(script, ",")
	actions := make([]action, 0, len(parts))
	for _, p := range parts {
		token := strings.TrimSpace(p)
		if token == "" {
			continue
		}
		if token == "ok" {
			actions = append(actions, action{kind: "ok"})
			continue
		}
		if strings.HasPrefix(token, "err:") {
			actions = append(actions, action{kind: "err", arg: strings.TrimPrefix(token, "err:")})
			continue
		}
		if strings.HasPrefix(token, "sleep:") {
			actions = append(actions, action{kind: "sleep", arg: strings.TrimPrefix(token, "sleep:")})
			continue
		}
		if strings.HasPrefix(token, "msg:") {
			actions = append(actions, action{kind: "msg", arg: strings.TrimPrefix(token, "msg:")})
			continue
		}
		if strings.HasPrefix(token, "msgb64:") {
			actions = append(actions, action{kind: "msgb64", arg: strings.TrimPrefix(token, "msgb64:")})
			continue
		}
		return nil, fmt.Errorf("invalid dummy action: %s", token)
	}
	if len(actions) == 0 {
		actions = append(actions, action{kind: "ok"})
	}
	return actions, nil
}

type scriptRunner struct {
	actions []action
	index   int
}

// next returns the next action; the last one repeats once the script is
// exhausted.
func (r *scriptRunner) next() action {
	if len(r.actions) == 0 {
		return action{kind: "ok"}
	}
	if r.index >= len(r.actions) {
		return r.actions[len(r.actions)-1]
	}
	a := r.actions[r.index]
	r.index++
	return a
}

// Provider replays a fixed script of replies. It records every request so
// tests can inspect what the loop sent.
type Provider struct {
	mu       sync.Mutex
	model    string
	script   *scriptRunner
	requests [][]ctxpkg.Message
}

func NewProvider(model, script string) (*Provider, error) {
	actions, err := parseScript(script)
	if err != nil {
		return nil, err
	}
	return &Provider{model: model, script: &scriptRunner{actions: actions}}, nil
}

// NewReplies builds a provider that answers with each reply in turn and
// repeats the last one. Replies may contain any text.
func NewReplies(replies ...string) *Provider {
	actions := make([]action, 0, len(replies))
	for _, r := range replies {
		actions = append(actions, action{kind: "msg", arg: r})
	}
	return &Provider{model: "dummy", script: &scriptRunner{actions: actions}}
}

// Requests returns a copy of every message list received so far.
func (p *Provider) Requests() [][]ctxpkg.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]ctxpkg.Message, len(p.requests))
	copy(out, p.requests)
	return out
}

func (p *Provider) ChatCompletion(ctx context.Context, messages []ctxpkg.Message) (modelpkg.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, append([]ctxpkg.Message(nil), messages...))
	if err := ctx.Err(); err != nil {
		return modelpkg.CompletionResponse{}, err
	}

	a := p.script.next()
	switch a.kind {
	case "err":
		return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider error class=%s", emptyAs(a.arg, "provider_api"))
	case "sleep":
		ms, _ := strconv.Atoi(a.arg)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return modelpkg.CompletionResponse{}, ctx.Err()
			}
		}
		return reply("dummy-after-sleep"), nil
	case "msg":
		return reply(a.arg), nil
	case "msgb64":
		raw, err := base64.StdEncoding.DecodeString(a.arg)
		if err != nil {
			return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider msgb64 decode failed: %w", err)
		}
		return reply(string(raw)), nil
	default:
		return reply(emptyAs(a.arg, "dummy-ok")), nil
	}
}

func reply(content string) modelpkg.CompletionResponse {
	return modelpkg.CompletionResponse{Content: content, InputTokens: 1, OutputTokens: 1}
}

// ListModels reports the single configured model.
func (p *Provider) ListModels(context.Context) ([]string, error) {
	return []string{emptyAs(p.model, "dummy")}, nil
}

func emptyAs(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
