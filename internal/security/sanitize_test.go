package security

import (
	"os"
	"strings"
	"testing"
)

func TestSanitizeOutputTruncates(t *testing.T) {
	s := SanitizeOutput(strings.Repeat("x", 100), 10)
	if len(s) != 10 {
		t.Errorf("expected truncated length 10, got %d", len(s))
	}
}

func TestSanitizeOutputStripsControlBytes(t *testing.T) {
	s := SanitizeOutput("hello\x00\x01world\n\ttab", 0)
	if strings.ContainsAny(s, "\x00\x01") {
		t.Errorf("expected control bytes stripped, got %q", s)
	}
	if !strings.Contains(s, "\n") || !strings.Contains(s, "\t") {
		t.Errorf("expected newline and tab preserved, got %q", s)
	}
}

func TestSanitizeOutputReplacesHomeDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		t.Skip("no home directory available")
	}
	s := SanitizeOutput(home+"/projects/foo", 0)
	if strings.Contains(s, home) {
		t.Errorf("expected home dir replaced, got %q", s)
	}
	if !strings.HasPrefix(s, "~/") {
		t.Errorf("expected ~ prefix, got %q", s)
	}
}

func TestShellQuoteEmbeddedQuote(t *testing.T) {
	q := ShellQuote("it's a test")
	if !strings.Contains(q, "it") {
		t.Errorf("expected quoted value to retain content, got %q", q)
	}
}
