// Package security centralizes every validation and sanitization primitive
// that a string crosses on its way from an external caller (an RPC request,
// a CLI flag, an agent-written status file) into a filesystem path, a shell
// argument vector, or a regular expression. No other package in this module
// performs its own path, identifier, or command-shape checking — they call
// into security instead, so the threat model lives in exactly one place.
//
// # Threat model
//
// T1 - Path traversal: a feature ID, session name, or relative path supplied
// by a caller (or written into a worker's self-reported status file) could
// escape <projectDir> via ".." segments, an absolute path, or a symlink
// planted by the agent process itself. ValidateProjectDir and
// ValidateRelativePath canonicalize with filepath.EvalSymlinks and refuse
// anything whose resolved target falls outside the project root.
//
// T2 - Command injection: the verification runner (internal/verify) and the
// init-script generator (internal/state) both turn caller-supplied text into
// either a subprocess argv or a line of shell script. ALLOWED_COMMAND_PATTERNS
// bounds the former to an exhaustive allow-list matched end-to-end after
// argument splitting; ShellQuote bounds the latter to quoted literals that a
// POSIX shell reads back as one word (backslash escapes, or single quotes
// where the text needs them). No command string built here reaches a shell:
// the commit_progress command, which embeds a ShellQuote'd message, is split
// back into argv before it runs.
//
// T3 - ReDoS: heartbeat scanning (internal/ops) runs caller-influenced
// worker output through patterns. SafeRegexTest refuses
// patterns classified as dangerous (nested quantifiers, overlapping greedy
// alternation) and falls back to literal substring matching rather than
// risking catastrophic backtracking.
//
// T4 - Identifier confusion: feature IDs and terminal-multiplexer session
// names are both embedded in filesystem paths and process argv. A feature ID
// that happened to look like a flag (-rf) or a path traversal component
// would be dangerous in either position. ValidateFeatureID and
// ValidateSessionName apply the same anchored character class,
// length-bounded regex used throughout the rest of the package.
//
// # Design principles
//
// Fail closed: every validator in this package rejects on doubt and never
// returns a partially-sanitized value. A caller that ignores an error from
// this package and uses the zero value gets an empty string or false, never
// a best-effort guess.
//
// Cheapest check first: length and character-class checks run before any
// filesystem syscalls, so a malformed identifier is rejected without ever
// touching disk.
package security
