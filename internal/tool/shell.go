package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// SystemTools runs shell commands inside the workspace with a hard timeout.
type SystemTools struct {
	Policy  *Policy
	Timeout time.Duration
	Limits  Limits
}

func NewSystemTools(policy *Policy, timeout time.Duration, limits Limits) *SystemTools {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if limits.MaxLines <= 0 {
		limits.MaxLines = DefaultLimits.MaxLines
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultLimits.MaxBytes
	}
	return &SystemTools{
		Policy:  policy,
		Timeout: timeout,
		Limits:  limits,
	}
}

// IsDangerous reports whether command needs confirmation in safe mode.
func (t *SystemTools) IsDangerous(command string) bool {
	return t.Policy.IsDangerous(command)
}

// Execute runs command with sh -c in the workspace directory. A timeout is
// reported separately from a non-zero exit code.
func (t *SystemTools) Execute(ctx context.Context, command string) Result {
	if strings.TrimSpace(command) == "" {
		return Fail(fmt.Errorf("command is empty"))
	}

	toolCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	cmd := exec.CommandContext(toolCtx, "sh", "-c", command)
	cmd.Dir = t.Policy.Workspace
	cmd.WaitDelay = time.Second

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if errors.Is(toolCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return Fail(fmt.Errorf("timed out after %s", formatSeconds(t.Timeout)))
	}
	if ctx.Err() != nil {
		return Fail(fmt.Errorf("command cancelled: %w", ctx.Err()))
	}

	exitCode := 0
	if runErr != nil {
		var ee *exec.ExitError
		if !errors.As(runErr, &ee) {
			return Fail(fmt.Errorf("command failed to start: %w", runErr))
		}
		exitCode = ee.ExitCode()
	}

	var out strings.Builder
	if stdout.Len() > 0 {
		out.WriteString("Output:\n" + limitWithNotice(stdout.String(), t.Limits) + "\n")
	}
	if stderr.Len() > 0 {
		out.WriteString("Stderr:\n" + limitWithNotice(stderr.String(), t.Limits) + "\n")
	}
	if exitCode != 0 {
		fmt.Fprintf(&out, "Exit code: %d", exitCode)
		return Result{Success: false, Output: out.String()}
	}
	out.WriteString("Command completed")
	return OK(out.String())
}

func formatSeconds(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
	return d.String()
}
