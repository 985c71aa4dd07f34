package security

import (
	"os"
	"strings"
)

// SanitizeOutput strips terminal control bytes (everything below 0x20
// except tab and newline, plus DEL), replaces the real home directory
// prefix with "~" using a literal (non-regex) substring replacement so a
// home directory path that happens to contain regex metacharacters cannot
// alter the replacement's meaning, and then truncates the result to maxLen
// bytes.
func SanitizeOutput(s string, maxLen int) string {
	s = stripControlBytes(s)
	s = replaceHomeDir(s)
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

func stripControlBytes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func replaceHomeDir(s string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return s
	}
	return strings.ReplaceAll(s, home, "~")
}
