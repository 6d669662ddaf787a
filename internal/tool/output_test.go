package tool

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestApplyOutputLimits_ByLines(t *testing.T) {
	in := "a\nb\nc\nd"
	out, tl, tb := ApplyOutputLimits(in, Limits{MaxLines: 2, MaxBytes: 0})
	if out != "a\nb" {
		t.Fatalf("unexpected output: %q", out)
	}
	if !tl || tb {
		t.Fatalf("unexpected flags tl=%v tb=%v", tl, tb)
	}
}

func TestApplyOutputLimits_ByBytes(t *testing.T) {
	in := "abcdef"
	out, tl, tb := ApplyOutputLimits(in, Limits{MaxLines: 0, MaxBytes: 3})
	if out != "abc" {
		t.Fatalf("unexpected output: %q", out)
	}
	if tl || !tb {
		t.Fatalf("unexpected flags tl=%v tb=%v", tl, tb)
	}
}

func TestApplyOutputLimits_Both(t *testing.T) {
	in := strings.Repeat("x", 10) + "\n" + strings.Repeat("y", 10) + "\n" + strings.Repeat("z", 10)
	out, tl, tb := ApplyOutputLimits(in, Limits{MaxLines: 2, MaxBytes: 15})
	if !tl || !tb {
		t.Fatalf("expected both truncations, got tl=%v tb=%v", tl, tb)
	}
	if len(out) > 15 {
		t.Fatalf("output not byte-truncated: len=%d", len(out))
	}
}

func TestLimitWithNotice(t *testing.T) {
	if got := limitWithNotice("short", Limits{MaxLines: 10, MaxBytes: 100}); got != "short" {
		t.Fatalf("unexpected output: %q", got)
	}
	got := limitWithNotice("a\nb\nc", Limits{MaxLines: 1, MaxBytes: 100})
	if !strings.HasPrefix(got, "a\n[output truncated") {
		t.Fatalf("expected truncation notice, got %q", got)
	}
}

func TestApplyOutputLimits_BytesKeepRunesWhole(t *testing.T) {
	in := "ab日本語"
	for max := 3; max <= 8; max++ {
		out, _, tb := ApplyOutputLimits(in, Limits{MaxBytes: max})
		if !tb || !utf8.ValidString(out) || len(out) > max {
			t.Fatalf("max=%d: unexpected output %q tb=%v", max, out, tb)
		}
		if !strings.HasPrefix(in, out) {
			t.Fatalf("max=%d: output %q is not a prefix", max, out)
		}
	}
	out, _, _ := ApplyOutputLimits(in, Limits{MaxBytes: 7})
	if out != "ab日" {
		t.Fatalf("unexpected cut: %q", out)
	}
}
