package tool

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrOutsideWorkspace is matched by every PermissionError.
var ErrOutsideWorkspace = errors.New("path outside workspace")

// PermissionError reports a path that resolves outside the workspace root.
type PermissionError struct {
	Path string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("access denied: %s is outside the workspace", e.Path)
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrOutsideWorkspace
}

// DefaultDangerPatterns flag commands that need confirmation in safe mode:
// recursive force-delete, privilege escalation, raw device access, disk
// formatting/imaging and power control.
var DefaultDangerPatterns = []string{
	`\brm\b.*-rf`,
	`\bsudo\b`,
	`\bdd\b`,
	`\bmkfs\b`,
	`\bformat\b`,
	`>\s*/dev/`,
	`\bshutdown\b`,
	`\breboot\b`,
}

// Policy confines paths to a single workspace root and classifies shell
// commands. It holds no mutable state.
type Policy struct {
	Workspace string

	danger []*regexp.Regexp
}

// NewPolicy builds a policy rooted at workspace. extraDangerCSV adds
// comma-separated regular expressions to DefaultDangerPatterns.
func NewPolicy(workspace string, extraDangerCSV string) (*Policy, error) {
	root, err := ParseWorkspaceRoot(workspace)
	if err != nil {
		return nil, err
	}
	patterns := append([]string{}, DefaultDangerPatterns...)
	patterns = append(patterns, parseCSV(extraDangerCSV)...)

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid danger pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &Policy{Workspace: root, danger: compiled}, nil
}

// ParseWorkspaceRoot returns the absolute, symlink-free form of the root.
func ParseWorkspaceRoot(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("workspace root is empty")
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	clean := filepath.Clean(abs)
	if real, err := filepath.EvalSymlinks(clean); err == nil {
		clean = filepath.Clean(real)
	}
	return clean, nil
}

// Resolve maps a workspace-relative or absolute path to an absolute path
// inside the workspace. It performs no I/O beyond symlink resolution.
func (p *Policy) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is empty")
	}
	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(p.Workspace, candidate)
	}
	candidate = filepath.Clean(candidate)

	resolved, err := resolvePathForCheck(candidate)
	if err != nil {
		return "", err
	}
	if !hasPathPrefix(resolved, p.Workspace) {
		return "", &PermissionError{Path: path}
	}
	return candidate, nil
}

// IsDangerous reports whether command matches any danger pattern. It only
// decides whether confirmation is needed; it never blocks execution.
func (p *Policy) IsDangerous(command string) bool {
	for _, re := range p.danger {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

func resolvePathForCheck(path string) (string, error) {
	real, err := filepath.EvalSymlinks(path)
	if err == nil {
		return filepath.Clean(real), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	// If path does not exist (write case), validate its nearest existing parent.
	dir := filepath.Dir(path)
	for {
		realDir, dirErr := filepath.EvalSymlinks(dir)
		if dirErr == nil {
			leaf := strings.TrimPrefix(path, dir)
			leaf = strings.TrimPrefix(leaf, string(filepath.Separator))
			return filepath.Clean(filepath.Join(realDir, leaf)), nil
		}
		if !errors.Is(dirErr, os.ErrNotExist) {
			return "", fmt.Errorf("failed to resolve parent path: %w", dirErr)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing parent for path: %s", path)
		}
		dir = parent
	}
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		item := strings.TrimSpace(p)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if root == string(filepath.Separator) {
		return true
	}
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}
