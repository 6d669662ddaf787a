package agent

import (
	"regexp"
	"strings"
)

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._\-=/+]+`),
	regexp.MustCompile(`(?i)\b(sk-[A-Za-z0-9\-_]{8,})\b`),
	regexp.MustCompile(`(?i)\b([A-Za-z0-9_]*(TOKEN|SECRET|PASSWORD|API_KEY))\b\s*[:=]\s*["']?([^\s"']+)`),
}

// redactSecrets masks credentials before text is persisted to the event log.
func redactSecrets(text string) string {
	out := text
	for _, p := range secretPatterns {
		out = p.ReplaceAllStringFunc(out, func(m string) string {
			if k, _, ok := strings.Cut(m, "="); ok {
				return k + "=***REDACTED***"
			}
			if k, _, ok := strings.Cut(m, ":"); ok {
				return k + ": ***REDACTED***"
			}
			return "***REDACTED***"
		})
	}
	return out
}

func truncate(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars]) + "..."
}
