package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// grammar matches one [KEYWORD]...[/KEYWORD] block and builds its command
// from the capture groups. build returns an error for a malformed match.
type grammar struct {
	kind  Kind
	re    *regexp.Regexp
	build func(groups []string) (Command, error)
}

// Content labels consume trailing blanks and at most one line break, so the
// first line of a multi-line body keeps its indentation.
const bodyStart = `[ \t]*(?:\r?\n)?`

var taggedGrammars = []grammar{
	{
		kind: KindCreateFile,
		re:   regexp.MustCompile(`(?is)\[CREATE_FILE\]\s*path:\s*(.+?)\s+content:` + bodyStart + `(.*?)\[/CREATE_FILE\]`),
		build: func(g []string) (Command, error) {
			path, err := required("path", g[1])
			if err != nil {
				return Command{}, err
			}
			return Command{Kind: KindCreateFile, Path: path, Content: g[2]}, nil
		},
	},
	{
		kind:  KindReadFile,
		re:    regexp.MustCompile(`(?is)\[READ_FILE\]\s*path:\s*(.+?)\s*\[/READ_FILE\]`),
		build: pathOnly(KindReadFile),
	},
	{
		kind: KindEditFile,
		re: regexp.MustCompile(`(?is)\[EDIT_FILE\]\s*path:\s*(.+?)\s+old_content:` + bodyStart +
			`(.*?)(?:\r?\n|[ \t]+)new_content:` + bodyStart + `(.*?)\[/EDIT_FILE\]`),
		build: func(g []string) (Command, error) {
			path, err := required("path", g[1])
			if err != nil {
				return Command{}, err
			}
			if g[2] == "" {
				return Command{}, fmt.Errorf("old_content is empty")
			}
			return Command{
				Kind:       KindEditFile,
				Path:       path,
				OldContent: g[2],
				NewContent: trimLineBreak(g[3]),
			}, nil
		},
	},
	{
		kind:  KindDeleteFile,
		re:    regexp.MustCompile(`(?is)\[DELETE_FILE\]\s*path:\s*(.+?)\s*\[/DELETE_FILE\]`),
		build: pathOnly(KindDeleteFile),
	},
	{
		kind: KindAppendFile,
		re:   regexp.MustCompile(`(?is)\[APPEND_FILE\]\s*path:\s*(.+?)\s+content:` + bodyStart + `(.*?)\[/APPEND_FILE\]`),
		build: func(g []string) (Command, error) {
			path, err := required("path", g[1])
			if err != nil {
				return Command{}, err
			}
			return Command{Kind: KindAppendFile, Path: path, Content: g[2]}, nil
		},
	},
	{
		kind:  KindCreateDir,
		re:    regexp.MustCompile(`(?is)\[CREATE_DIR\]\s*path:\s*(.+?)\s*\[/CREATE_DIR\]`),
		build: pathOnly(KindCreateDir),
	},
	{
		kind:  KindListDir,
		re:    regexp.MustCompile(`(?is)\[LIST_DIR\]\s*path:\s*(.+?)\s*\[/LIST_DIR\]`),
		build: pathOnly(KindListDir),
	},
	{
		kind:  KindDeleteDir,
		re:    regexp.MustCompile(`(?is)\[DELETE_DIR\]\s*path:\s*(.+?)\s*\[/DELETE_DIR\]`),
		build: pathOnly(KindDeleteDir),
	},
	{
		kind: KindExecute,
		re:   regexp.MustCompile(`(?is)\[EXECUTE\]\s*command:\s*(.+?)\s*\[/EXECUTE\]`),
		build: func(g []string) (Command, error) {
			cmd, err := required("command", g[1])
			if err != nil {
				return Command{}, err
			}
			return Command{Kind: KindExecute, Command: cmd}, nil
		},
	},
	{
		kind: KindSearch,
		re:   regexp.MustCompile(`(?is)\[SEARCH\]\s*pattern:\s*(.+?)(?:\s+path:\s*(.+?))?\s*\[/SEARCH\]`),
		build: func(g []string) (Command, error) {
			pattern, err := required("pattern", g[1])
			if err != nil {
				return Command{}, err
			}
			return Command{Kind: KindSearch, Pattern: pattern, Path: orDefault(g[2], DefaultSearchPath)}, nil
		},
	},
	{
		kind: KindTree,
		re:   regexp.MustCompile(`(?is)\[TREE\](?:\s*path:\s*(.+?))?(?:\s+depth:\s*(\d+))?\s*\[/TREE\]`),
		build: func(g []string) (Command, error) {
			depth := DefaultTreeDepth
			if d := strings.TrimSpace(g[2]); d != "" {
				n, err := strconv.Atoi(d)
				if err != nil {
					return Command{}, fmt.Errorf("invalid depth %q: %w", d, err)
				}
				depth = n
			}
			return Command{Kind: KindTree, Path: orDefault(g[1], DefaultTreePath), Depth: depth}, nil
		},
	},
	{
		kind: KindRespond,
		re:   regexp.MustCompile(`(?is)\[RESPOND\]\s*(.*?)\[/RESPOND\]`),
		build: func(g []string) (Command, error) {
			return Command{Kind: KindRespond, Message: strings.TrimSpace(g[1])}, nil
		},
	},
	{
		kind: KindDone,
		re:   regexp.MustCompile(`(?is)\[DONE\]\s*(.*?)\[/DONE\]`),
		build: func(g []string) (Command, error) {
			return Command{Kind: KindDone, Message: strings.TrimSpace(g[1])}, nil
		},
	},
	{
		kind:  KindMoveFile,
		re:    regexp.MustCompile(`(?is)\[MOVE_FILE\]\s*source:\s*(.+?)\s+destination:\s*(.+?)\s*\[/MOVE_FILE\]`),
		build: sourceDest(KindMoveFile),
	},
	{
		kind:  KindCopyFile,
		re:    regexp.MustCompile(`(?is)\[COPY_FILE\]\s*source:\s*(.+?)\s+destination:\s*(.+?)\s*\[/COPY_FILE\]`),
		build: sourceDest(KindCopyFile),
	},
	{
		kind:  KindFileInfo,
		re:    regexp.MustCompile(`(?is)\[FILE_INFO\]\s*path:\s*(.+?)\s*\[/FILE_INFO\]`),
		build: pathOnly(KindFileInfo),
	},
}

// TaggedParser reads the [KEYWORD]...[/KEYWORD] protocol. Grammars are
// tried in declaration order and the first one that matches anywhere in the
// text wins, regardless of where the match sits in the reply.
type TaggedParser struct{}

func (p *TaggedParser) Parse(text string) (Command, error) {
	for _, g := range taggedGrammars {
		groups := g.re.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		cmd, err := g.build(groups)
		if err != nil {
			// Malformed match: fall through to the next grammar.
			continue
		}
		return cmd, nil
	}
	return Command{}, ErrNoCommand
}

func pathOnly(kind Kind) func([]string) (Command, error) {
	return func(g []string) (Command, error) {
		path, err := required("path", g[1])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: kind, Path: path}, nil
	}
}

func sourceDest(kind Kind) func([]string) (Command, error) {
	return func(g []string) (Command, error) {
		src, err := required("source", g[1])
		if err != nil {
			return Command{}, err
		}
		dst, err := required("destination", g[2])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: kind, Source: src, Destination: dst}, nil
	}
}

func required(field, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", fmt.Errorf("%s is empty", field)
	}
	return v, nil
}

func orDefault(raw, def string) string {
	if v := strings.TrimSpace(raw); v != "" {
		return v
	}
	return def
}

// trimLineBreak drops the single line break that separates a body from the
// closing tag.
func trimLineBreak(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
