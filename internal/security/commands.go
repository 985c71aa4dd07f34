package security

import "regexp"

// ALLOWED_COMMAND_PATTERNS is the exhaustive, in-code list of
// anchored regular expressions a verification command's re-joined argv must
// match end-to-end. Each pattern is anchored with ^...$ and matches against
// the space-joined, already-tokenised argv — never the raw caller string —
// so quoting games played before tokenisation cannot smuggle anything past
// it (internal/verify tokenises first, then calls MatchAllowedCommand on the
// rejoined tokens).
var allowedCommandPatterns = []*regexp.Regexp{
	// Node / JS ecosystem
	regexp.MustCompile(`^npm (run )?(test|build|lint|typecheck|ci)( --.*)?$`),
	regexp.MustCompile(`^npx (jest|vitest|tsc|eslint)( .*)?$`),
	regexp.MustCompile(`^yarn (test|build|lint|typecheck)( .*)?$`),
	regexp.MustCompile(`^pnpm (test|build|lint|typecheck)( .*)?$`),

	// Go ecosystem
	regexp.MustCompile(`^go (test|build|vet) (\./\.\.\.|[\w./-]+)( -\S+)*$`),
	regexp.MustCompile(`^gofmt -l [\w./-]+$`),
	regexp.MustCompile(`^golangci-lint run( .*)?$`),

	// Python ecosystem
	regexp.MustCompile(`^pytest( .*)?$`),
	regexp.MustCompile(`^python -m pytest( .*)?$`),
	regexp.MustCompile(`^ruff check( .*)?$`),
	regexp.MustCompile(`^black --check( .*)?$`),
	regexp.MustCompile(`^mypy( .*)?$`),

	// Rust ecosystem
	regexp.MustCompile(`^cargo (test|build|check|clippy)( .*)?$`),
	regexp.MustCompile(`^cargo fmt --check$`),

	// Make / generic build
	regexp.MustCompile(`^make (test|build|lint|check)$`),

	// Git, for commit_progress only
	regexp.MustCompile(`^git commit -am .+$`),
	regexp.MustCompile(`^git commit -m .+$`),
}

// MatchAllowedCommand reports whether command (already tokenised and
// rejoined with single spaces by the caller) matches at least one entry of
// ALLOWED_COMMAND_PATTERNS end-to-end.
func MatchAllowedCommand(command string) bool {
	for _, pattern := range allowedCommandPatterns {
		if pattern.MatchString(command) {
			return true
		}
	}
	return false
}
