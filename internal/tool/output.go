package tool

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Limits controls output truncation boundaries.
type Limits struct {
	MaxLines int
	MaxBytes int
}

// DefaultLimits matches the bounds applied to shell output when none are configured.
var DefaultLimits = Limits{MaxLines: 2000, MaxBytes: 51200}

// ApplyOutputLimits truncates text by line and byte limits. The byte cut
// backs off to a rune boundary, so the result may be shorter than MaxBytes.
func ApplyOutputLimits(text string, limits Limits) (out string, truncatedLines bool, truncatedBytes bool) {
	if limits.MaxLines > 0 {
		lines := strings.Split(text, "\n")
		if len(lines) > limits.MaxLines {
			lines = lines[:limits.MaxLines]
			text = strings.Join(lines, "\n")
			truncatedLines = true
		}
	}

	if limits.MaxBytes > 0 && len(text) > limits.MaxBytes {
		cut := limits.MaxBytes
		// Never split a multi-byte rune.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
		truncatedBytes = true
	}
	return text, truncatedLines, truncatedBytes
}

// limitWithNotice applies limits and appends a marker when anything was cut.
func limitWithNotice(text string, limits Limits) string {
	out, tl, tb := ApplyOutputLimits(text, limits)
	if !tl && !tb {
		return out
	}
	return fmt.Sprintf("%s\n[output truncated: max %d lines / %d bytes]", out, limits.MaxLines, limits.MaxBytes)
}
