package protocol

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// JSONParser reads the single-object JSON protocol:
//
//	{"reasoning": "...", "keyword": "CREATE_FILE", "path": "a.txt", "content": "..."}
//
// The object may be wrapped in a fenced code block and surrounded by prose.
type JSONParser struct {
	// StringAware makes object extraction skip braces inside string
	// literals. The default scan counts every brace.
	StringAware bool
	// RequireReasoning rejects objects without a non-empty reasoning field.
	RequireReasoning bool
}

// keywordAliases maps the alternate JSON keywords onto the closed command set.
var keywordAliases = map[string]Kind{
	"EXECUTE_SHELL": KindExecute,
	"SEARCH_FILES":  KindSearch,
	"LIST_FILES":    KindListDir,
	"GET_INFO":      KindFileInfo,
}

func (p *JSONParser) Parse(text string) (Command, error) {
	body := StripCodeFence(text)
	var raw string
	if p.StringAware {
		raw = ExtractJSONObjectStrict(body)
	} else {
		raw = ExtractJSONObject(body)
	}
	if raw == "" {
		return Command{}, ErrNoCommand
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Command{}, fmt.Errorf("%w: invalid JSON: %v", ErrNoCommand, err)
	}
	obj := jsonObject(fields)

	reasoning := strings.TrimSpace(obj.str("reasoning"))
	if p.RequireReasoning && reasoning == "" {
		return Command{}, fmt.Errorf("%w: reasoning is required", ErrNoCommand)
	}
	keyword := strings.ToUpper(strings.TrimSpace(obj.str("keyword")))
	if keyword == "" {
		return Command{}, fmt.Errorf("%w: keyword is missing", ErrNoCommand)
	}

	cmd, err := obj.command(keyword)
	if err != nil {
		return Command{}, fmt.Errorf("%w: %s: %v", ErrNoCommand, keyword, err)
	}
	cmd.Reasoning = reasoning
	return cmd, nil
}

type jsonObject map[string]any

func (o jsonObject) str(key string) string {
	switch v := o[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func (o jsonObject) required(key string) (string, error) {
	return required(key, o.str(key))
}

func (o jsonObject) command(keyword string) (Command, error) {
	if keyword == "MODIFY_FILE" {
		return o.modify()
	}
	kind, ok := keywordAliases[keyword]
	if !ok {
		if kind, ok = ParseKind(keyword); !ok {
			return Command{}, fmt.Errorf("unknown keyword")
		}
	}

	switch kind {
	case KindCreateFile, KindAppendFile:
		path, err := o.required("path")
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: kind, Path: path, Content: o.str("content")}, nil
	case KindEditFile:
		path, err := o.required("path")
		if err != nil {
			return Command{}, err
		}
		old := o.str("old_content")
		if old == "" {
			return Command{}, fmt.Errorf("old_content is empty")
		}
		return Command{Kind: kind, Path: path, OldContent: old, NewContent: o.str("new_content")}, nil
	case KindReadFile, KindDeleteFile, KindCreateDir, KindDeleteDir, KindFileInfo:
		path, err := o.required("path")
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: kind, Path: path}, nil
	case KindListDir:
		return Command{Kind: kind, Path: orDefault(o.str("path"), ".")}, nil
	case KindExecute:
		c, err := o.required("command")
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: kind, Command: c}, nil
	case KindSearch:
		pattern := strings.TrimSpace(o.str("pattern"))
		if pattern == "" {
			if term := strings.TrimSpace(o.str("term")); term != "" {
				pattern = regexp.QuoteMeta(term)
			}
		}
		if pattern == "" {
			return Command{}, fmt.Errorf("pattern is empty")
		}
		return Command{Kind: kind, Pattern: pattern, Path: orDefault(o.str("path"), DefaultSearchPath)}, nil
	case KindTree:
		depth := DefaultTreeDepth
		if d := strings.TrimSpace(o.str("depth")); d != "" {
			n, err := strconv.Atoi(d)
			if err != nil {
				return Command{}, fmt.Errorf("invalid depth %q", d)
			}
			depth = n
		}
		return Command{Kind: kind, Path: orDefault(o.str("path"), DefaultTreePath), Depth: depth}, nil
	case KindRespond, KindDone:
		msg := o.str("message")
		if msg == "" {
			msg = o.str("summary")
		}
		return Command{Kind: kind, Message: strings.TrimSpace(msg)}, nil
	case KindMoveFile, KindCopyFile:
		src, err := o.required("source")
		if err != nil {
			return Command{}, err
		}
		dst, err := o.required("destination")
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: kind, Source: src, Destination: dst}, nil
	}
	return Command{}, fmt.Errorf("unsupported keyword")
}

// modify maps MODIFY_FILE onto CREATE_FILE (mode replace, the default) or
// APPEND_FILE (mode append). Other modes are rejected.
func (o jsonObject) modify() (Command, error) {
	path, err := o.required("path")
	if err != nil {
		return Command{}, err
	}
	switch mode := strings.ToLower(strings.TrimSpace(o.str("mode"))); mode {
	case "", "replace":
		return Command{Kind: KindCreateFile, Path: path, Content: o.str("content")}, nil
	case "append":
		return Command{Kind: KindAppendFile, Path: path, Content: o.str("content")}, nil
	default:
		return Command{}, fmt.Errorf("unsupported mode %q", mode)
	}
}

// StripCodeFence returns the body of the first fenced block, preferring a
// ```json fence. Text without a fence is returned trimmed.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	open := "```json"
	start := strings.Index(text, open)
	if start < 0 {
		open = "```"
		start = strings.Index(text, open)
	}
	if start < 0 {
		return text
	}
	start += len(open)
	end := strings.Index(text[start:], "```")
	if end < 0 {
		return strings.TrimSpace(text[start:])
	}
	return strings.TrimSpace(text[start : start+end])
}

// ExtractJSONObject returns the first complete top-level object in text by
// counting braces from the first '{'. Braces inside string literals are
// counted too. It returns "" when no object closes.
func ExtractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// ExtractJSONObjectStrict is ExtractJSONObject with string literals and
// their escape sequences skipped.
func ExtractJSONObjectStrict(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
