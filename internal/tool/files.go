package tool

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrContentNotFound = errors.New("content to replace not found in file")
)

const bytesPerMB = 1024 * 1024

// FileTools performs file and directory operations confined to the
// policy's workspace. Every method resolves its path through Policy.Resolve
// before touching the file system.
type FileTools struct {
	Policy    *Policy
	MaxSizeMB int
}

func NewFileTools(policy *Policy, maxSizeMB int) *FileTools {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &FileTools{
		Policy:    policy,
		MaxSizeMB: maxSizeMB,
	}
}

// CreateFile writes content to path, creating parent directories and
// overwriting any existing file.
func (t *FileTools) CreateFile(path, content string) Result {
	full, err := t.Policy.Resolve(path)
	if err != nil {
		return Fail(err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Fail(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return Fail(err)
	}
	return OK("File created: " + path)
}

// ReadFile returns the file content. Files above MaxSizeMB are rejected
// before any read happens.
func (t *FileTools) ReadFile(path string) Result {
	full, err := t.Policy.Resolve(path)
	if err != nil {
		return Fail(err)
	}
	info, err := os.Stat(full)
	if err != nil {
		return Fail(err)
	}
	sizeMB := float64(info.Size()) / bytesPerMB
	if sizeMB > float64(t.MaxSizeMB) {
		return Fail(fmt.Errorf("%w: %.2fMB (limit %dMB)", ErrFileTooLarge, sizeMB, t.MaxSizeMB))
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return Fail(err)
	}
	return OK(fmt.Sprintf("Contents of %s:\n```\n%s\n```", path, data))
}

// EditFile replaces the first literal occurrence of oldContent.
func (t *FileTools) EditFile(path, oldContent, newContent string) Result {
	full, err := t.Policy.Resolve(path)
	if err != nil {
		return Fail(err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return Fail(err)
	}
	content := string(data)
	if !strings.Contains(content, oldContent) {
		return Fail(ErrContentNotFound)
	}
	updated := strings.Replace(content, oldContent, newContent, 1)
	info, err := os.Stat(full)
	if err != nil {
		return Fail(err)
	}
	if err := os.WriteFile(full, []byte(updated), info.Mode().Perm()); err != nil {
		return Fail(err)
	}
	return OK("File edited: " + path)
}

// AppendFile writes content at the end of path exactly as given.
func (t *FileTools) AppendFile(path, content string) Result {
	full, err := t.Policy.Resolve(path)
	if err != nil {
		return Fail(err)
	}
	f, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Fail(err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return Fail(err)
	}
	if err := f.Close(); err != nil {
		return Fail(err)
	}
	return OK("Content appended to: " + path)
}

func (t *FileTools) DeleteFile(path string) Result {
	full, err := t.Policy.Resolve(path)
	if err != nil {
		return Fail(err)
	}
	info, err := os.Lstat(full)
	if err != nil {
		return Fail(err)
	}
	if info.IsDir() {
		return Fail(fmt.Errorf("%s is a directory", path))
	}
	if err := os.Remove(full); err != nil {
		return Fail(err)
	}
	return OK("File deleted: " + path)
}

func (t *FileTools) CreateDir(path string) Result {
	full, err := t.Policy.Resolve(path)
	if err != nil {
		return Fail(err)
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return Fail(err)
	}
	return OK("Directory created: " + path)
}

// DeleteDir removes path and everything below it. The workspace root
// itself cannot be removed.
func (t *FileTools) DeleteDir(path string) Result {
	full, err := t.Policy.Resolve(path)
	if err != nil {
		return Fail(err)
	}
	if filepath.Clean(full) == t.Policy.Workspace {
		return Fail(fmt.Errorf("refusing to delete the workspace root"))
	}
	info, err := os.Stat(full)
	if err != nil {
		return Fail(err)
	}
	if !info.IsDir() {
		return Fail(fmt.Errorf("%s is not a directory", path))
	}
	if err := os.RemoveAll(full); err != nil {
		return Fail(err)
	}
	return OK("Directory deleted: " + path)
}

// ListDir lists entries in lexicographic order with type and size.
func (t *FileTools) ListDir(path string) Result {
	full, err := t.Policy.Resolve(path)
	if err != nil {
		return Fail(err)
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return Fail(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Contents of %s:\n", path)
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(&b, "  [dir]  %s/\n", e.Name())
			continue
		}
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		fmt.Fprintf(&b, "  [file] %s (%d bytes)\n", e.Name(), size)
	}
	if len(entries) == 0 {
		b.WriteString("  (empty)\n")
	}
	return OK(b.String())
}

// Tree renders path recursively down to depth. The top level is rendered
// at depth, its children at depth-1, and so on; a negative depth renders
// nothing.
func (t *FileTools) Tree(path string, depth int) Result {
	full, err := t.Policy.Resolve(path)
	if err != nil {
		return Fail(err)
	}
	info, err := os.Stat(full)
	if err != nil {
		return Fail(err)
	}
	if !info.IsDir() {
		return Fail(fmt.Errorf("%s is not a directory", path))
	}
	var b strings.Builder
	renderTree(&b, full, "", depth)
	return OK(fmt.Sprintf("Tree of %s:\n%s", path, b.String()))
}

func renderTree(b *strings.Builder, dir, prefix string, depth int) {
	if depth < 0 {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			b.WriteString(prefix + "  [permission denied]\n")
		} else {
			b.WriteString(prefix + "  [error: " + err.Error() + "]\n")
		}
		return
	}
	for i, e := range entries {
		last := i == len(entries)-1
		connector := "├── "
		if last {
			connector = "└── "
		}
		if !e.IsDir() {
			b.WriteString(prefix + connector + e.Name() + "\n")
			continue
		}
		b.WriteString(prefix + connector + e.Name() + "/\n")
		childPrefix := prefix + "│   "
		if last {
			childPrefix = prefix + "    "
		}
		renderTree(b, filepath.Join(dir, e.Name()), childPrefix, depth-1)
	}
}

// Search walks root and returns every file whose name matches pattern
// (case-insensitive regular expression). Order follows the walk.
func (t *FileTools) Search(pattern, root string) Result {
	full, err := t.Policy.Resolve(root)
	if err != nil {
		return Fail(err)
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Fail(fmt.Errorf("invalid search pattern: %w", err))
	}
	if _, err := os.Stat(full); err != nil {
		return Fail(err)
	}

	var matches []string
	_ = filepath.WalkDir(full, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !re.MatchString(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(full, p)
		if err != nil {
			rel = p
		}
		matches = append(matches, rel)
		return nil
	})

	if len(matches) == 0 {
		return OK(fmt.Sprintf("No files found for '%s'", pattern))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Files found for '%s':\n", pattern)
	for _, m := range matches {
		b.WriteString("  " + m + "\n")
	}
	return OK(b.String())
}

// MoveFile renames source to destination; both must be inside the workspace.
func (t *FileTools) MoveFile(source, destination string) Result {
	src, err := t.Policy.Resolve(source)
	if err != nil {
		return Fail(err)
	}
	dst, err := t.Policy.Resolve(destination)
	if err != nil {
		return Fail(err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Fail(err)
	}
	if err := os.Rename(src, dst); err != nil {
		return Fail(err)
	}
	return OK(fmt.Sprintf("File moved: %s -> %s", source, destination))
}

// CopyFile copies a regular file, preserving its permission bits.
func (t *FileTools) CopyFile(source, destination string) Result {
	src, err := t.Policy.Resolve(source)
	if err != nil {
		return Fail(err)
	}
	dst, err := t.Policy.Resolve(destination)
	if err != nil {
		return Fail(err)
	}
	in, err := os.Open(src)
	if err != nil {
		return Fail(err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return Fail(err)
	}
	if info.IsDir() {
		return Fail(fmt.Errorf("%s is a directory", source))
	}
	if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(info, dstInfo) {
		return Fail(fmt.Errorf("%s and %s are the same file", source, destination))
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Fail(err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return Fail(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return Fail(err)
	}
	if err := out.Close(); err != nil {
		return Fail(err)
	}
	return OK(fmt.Sprintf("File copied: %s -> %s", source, destination))
}

// FileInfo reports size, type and modification time.
func (t *FileTools) FileInfo(path string) Result {
	full, err := t.Policy.Resolve(path)
	if err != nil {
		return Fail(err)
	}
	info, err := os.Stat(full)
	if err != nil {
		return Fail(err)
	}
	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	return OK(fmt.Sprintf(
		"Info for %s:\n  type: %s\n  size: %d bytes\n  mode: %s\n  modified: %s\n",
		path, kind, info.Size(), info.Mode().Perm(), info.ModTime().UTC().Format(time.RFC3339),
	))
}
