package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/stupiduntilnot/termagent/internal/agent"
	"github.com/stupiduntilnot/termagent/internal/anthropic"
	"github.com/stupiduntilnot/termagent/internal/config"
	"github.com/stupiduntilnot/termagent/internal/confirm"
	ctxpkg "github.com/stupiduntilnot/termagent/internal/context"
	"github.com/stupiduntilnot/termagent/internal/control"
	"github.com/stupiduntilnot/termagent/internal/db"
	"github.com/stupiduntilnot/termagent/internal/dummy"
	"github.com/stupiduntilnot/termagent/internal/executor"
	"github.com/stupiduntilnot/termagent/internal/logs"
	modelpkg "github.com/stupiduntilnot/termagent/internal/model"
	"github.com/stupiduntilnot/termagent/internal/ollama"
	"github.com/stupiduntilnot/termagent/internal/openai"
	"github.com/stupiduntilnot/termagent/internal/prompts"
	"github.com/stupiduntilnot/termagent/internal/protocol"
	"github.com/stupiduntilnot/termagent/internal/tool"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, interruptible))
}

// interruptible scopes Ctrl-C to a single task so the REPL survives it.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

type flags struct {
	provider  string
	model     string
	workspace string
	protocol  string
	task      string
	safeMode  bool
	unsafe    bool
	set       map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.provider, "provider", "", "model backend: "+strings.Join(config.Providers, ", "))
	fs.StringVar(&f.model, "model", "", "model name (empty auto-selects for openai-compatible servers)")
	fs.StringVar(&f.workspace, "workspace", "", "directory all operations are confined to")
	fs.StringVar(&f.protocol, "protocol", "", "command protocol: tagged or json")
	fs.StringVar(&f.task, "task", "", "run a single task and exit")
	fs.BoolVar(&f.safeMode, "safe-mode", false, "confirm destructive and dangerous operations")
	fs.BoolVar(&f.unsafe, "unsafe", false, "never ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	f.set = map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	if f.safeMode && f.unsafe {
		err := fmt.Errorf("--safe-mode and --unsafe are mutually exclusive")
		fmt.Fprintln(fs.Output(), err)
		return flags{}, err
	}
	return f, nil
}

// apply overlays the flags that were given explicitly.
func (f flags) apply(cfg config.Config) config.Config {
	if f.set["provider"] {
		cfg.Provider = strings.ToLower(f.provider)
	}
	if f.set["model"] {
		cfg.Model = f.model
	}
	if f.set["workspace"] {
		cfg.Workspace = f.workspace
	}
	if f.set["protocol"] {
		cfg.Protocol = strings.ToLower(f.protocol)
	}
	if f.safeMode {
		cfg.SafeMode = true
	}
	if f.unsafe {
		cfg.SafeMode = false
	}
	return cfg
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, taskContext func(context.Context) (context.Context, context.CancelFunc)) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	cfg, err := config.Resolve()
	if err != nil {
		fmt.Fprintf(stderr, "[agent] %v\n", err)
		return 1
	}
	cfg = f.apply(cfg)
	if err := cfg.Finalize(); err != nil {
		fmt.Fprintf(stderr, "[agent] %v\n", err)
		return 1
	}

	logger, closeLog, err := logs.New(logs.Options{Level: cfg.LogLevel, Out: stderr, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(stderr, "[agent] %v\n", err)
		return 1
	}
	defer closeLog.Close()

	s, err := newSession(ctx, cfg, stdin, stdout, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer s.close()
	s.taskContext = taskContext

	if f.task != "" {
		res := s.runTask(ctx, f.task)
		if res.Outcome != agent.OutcomeDone {
			return 1
		}
		return 0
	}
	s.repl(ctx)
	return 0
}

type session struct {
	cfg         config.Config
	agent       *agent.Agent
	term        *confirm.Terminal
	out         io.Writer
	logger      *slog.Logger
	database    *sql.DB
	rootID      int64
	taskContext func(context.Context) (context.Context, context.CancelFunc)
}

func newSession(ctx context.Context, cfg config.Config, stdin io.Reader, stdout io.Writer, logger *slog.Logger) (*session, error) {
	if err := os.MkdirAll(cfg.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	policy, err := tool.NewPolicy(cfg.Workspace, cfg.DangerExtra)
	if err != nil {
		return nil, fmt.Errorf("tool policy: %w", err)
	}
	files := tool.NewFileTools(policy, cfg.MaxFileSizeMB)
	system := tool.NewSystemTools(policy, cfg.ExecTimeout(), tool.Limits{MaxLines: cfg.ExecMaxOutputLines, MaxBytes: cfg.ExecMaxOutputBytes})

	term := confirm.NewTerminal(stdin, stdout)
	exec := executor.New(files, system, cfg.SafeMode, term)

	provider, err := newModelProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("model provider: %w", err)
	}
	if err := checkConnection(ctx, provider, logger); err != nil {
		return nil, err
	}

	parser, err := newParser(cfg)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, term: term, out: stdout, logger: logger}
	if cfg.DBPath != "" {
		if s.database, err = db.OpenDB(cfg.DBPath); err != nil {
			return nil, err
		}
		if err := db.InitSchema(s.database); err != nil {
			s.database.Close()
			return nil, fmt.Errorf("failed to init schema: %w", err)
		}
		s.rootID, err = db.LogEvent(s.database, nil, db.EventProcessStarted, map[string]any{
			"role":      "agent",
			"pid":       os.Getpid(),
			"provider":  cfg.Provider,
			"model":     cfg.Model,
			"workspace": policy.Workspace,
			"safe_mode": cfg.SafeMode,
			"protocol":  cfg.Protocol,
		})
		if err != nil {
			logger.Warn("failed to log process.started", "error", err)
		}
	}

	var compressor ctxpkg.Compressor
	if cfg.HistoryLimit > 0 {
		compressor = ctxpkg.NewAnchoredCompressor(cfg.HistoryLimit)
	}
	s.agent, err = agent.New(agent.Options{
		Provider:      provider,
		Parser:        parser,
		Executor:      exec,
		Prompts:       prompts.For(cfg.Protocol),
		Compressor:    compressor,
		Policy:        control.Policy{MaxIterations: cfg.MaxIterations, MaxWallTime: cfg.MaxWallTime()},
		Logger:        logger,
		DB:            s.database,
		ParentEventID: s.rootID,
		OnEvent:       newRenderer(stdout).render,
	})
	if err != nil {
		s.close()
		return nil, err
	}
	s.cfg.Workspace = policy.Workspace
	if c, ok := provider.(*openai.Client); ok {
		s.cfg.Model = c.Model()
	}
	return s, nil
}

func (s *session) close() {
	if s.database == nil {
		return
	}
	if _, err := db.LogEvent(s.database, &s.rootID, db.EventProcessExited, map[string]any{"pid": os.Getpid()}); err != nil {
		s.logger.Warn("failed to log process.exited", "error", err)
	}
	s.database.Close()
}

func (s *session) runTask(ctx context.Context, task string) agent.Result {
	if s.taskContext != nil {
		var stop context.CancelFunc
		ctx, stop = s.taskContext(ctx)
		defer stop()
	}
	fmt.Fprintln(s.out, "\nThinking...")
	return s.agent.Run(ctx, task)
}

func (s *session) repl(ctx context.Context) {
	printBanner(s.out, s.cfg)
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprint(s.out, "\nYou > ")
		line, err := s.term.ReadLine(ctx)
		input := strings.TrimSpace(line)
		switch strings.ToLower(input) {
		case "":
		case "exit", "quit", "esci":
			fmt.Fprintln(s.out, "\nGoodbye!")
			return
		case "reset":
			s.agent.Reset()
			fmt.Fprintln(s.out, "Conversation cleared.")
		case "actions":
			printActions(s.out, s.agent.Actions())
		default:
			s.runTask(ctx, input)
		}
		if err != nil {
			fmt.Fprintln(s.out)
			return
		}
	}
}

func printBanner(w io.Writer, cfg config.Config) {
	fmt.Fprintln(w, "AI Agent Terminal")
	fmt.Fprintln(w, "Type 'exit', 'quit' or 'esci' to stop, 'reset' to clear the conversation, 'actions' to list executed commands.")
	fmt.Fprintf(w, "\nProvider:  %s\n", cfg.Provider)
	fmt.Fprintf(w, "Model:     %s\n", cfg.Model)
	fmt.Fprintf(w, "Workspace: %s\n", cfg.Workspace)
	fmt.Fprintf(w, "Safe mode: %t\n", cfg.SafeMode)
	if cfg.Provider == "lmstudio" {
		fmt.Fprintf(w, "URL:       %s\n", cfg.LMStudioBaseURL)
	}
	fmt.Fprintln(w, strings.Repeat("-", 60))
}

func printActions(w io.Writer, actions []agent.Action) {
	if len(actions) == 0 {
		fmt.Fprintln(w, "No commands executed yet.")
		return
	}
	for _, a := range actions {
		mark := "ok"
		if !a.Success {
			mark = "failed"
		}
		fmt.Fprintf(w, "%s  %-11s %s  [%s]\n", a.Time.Format("15:04:05"), a.Kind, a.Summary, mark)
	}
}

func newModelProvider(cfg config.Config) (modelpkg.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, cfg.AITimeout()).WithTemperature(float32(cfg.Temperature)), nil
	case "groq":
		return openai.NewGroq(cfg.GroqAPIKey, cfg.Model, cfg.AITimeout()).WithTemperature(float32(cfg.Temperature)), nil
	case "lmstudio":
		c := openai.NewLMStudio(cfg.LMStudioBaseURL, cfg.Model, cfg.AITimeout())
		if cfg.Temperature > 0 {
			c.WithTemperature(float32(cfg.Temperature))
		}
		return c, nil
	case "anthropic":
		return anthropic.NewClient(cfg.AnthropicAPIKey, "", cfg.Model, cfg.AITimeout()), nil
	case "ollama":
		return ollama.NewClient(cfg.OllamaBaseURL, cfg.Model, cfg.AITimeout()), nil
	case "dummy":
		return dummy.NewProvider(cfg.Model, cfg.DummyScript)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Provider)
	}
}

// checkConnection lists models on backends that support it. OpenAI-compatible
// clients also pick a model here when none is configured.
func checkConnection(ctx context.Context, provider modelpkg.Provider, logger *slog.Logger) error {
	if c, ok := provider.(*openai.Client); ok {
		model, err := c.EnsureModel(ctx)
		if err != nil {
			return fmt.Errorf("connection check failed: %w", err)
		}
		logger.Info("model server reachable", "model", model)
		return nil
	}
	lister, ok := provider.(modelpkg.ModelLister)
	if !ok {
		return nil
	}
	models, err := lister.ListModels(ctx)
	if err != nil {
		// Some deployments hide the model list; the first chat call decides.
		logger.Warn("model list unavailable", "error", err)
		return nil
	}
	logger.Info("model server reachable", "models", len(models))
	return nil
}

func newParser(cfg config.Config) (protocol.Parser, error) {
	if cfg.Protocol == "json" {
		return &protocol.JSONParser{
			StringAware:      cfg.JSONStringAware,
			RequireReasoning: cfg.JSONRequireReasoning,
		}, nil
	}
	return protocol.New(cfg.Protocol)
}
