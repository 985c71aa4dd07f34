package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateProjectDir rejects empty and non-absolute paths and paths
// containing ".." segments. On success it returns the canonicalised
// (symlink-resolved) path; a project directory that is itself a symlink is
// accepted and its target returned, wherever that target lies.
func ValidateProjectDir(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("project directory must not be empty")
	}
	if !filepath.IsAbs(p) {
		return "", fmt.Errorf("project directory %q must be absolute", p)
	}
	if containsDotDot(p) {
		return "", fmt.Errorf("project directory %q must not contain .. segments", p)
	}

	resolved, err := resolveExisting(p)
	if err != nil {
		return "", fmt.Errorf("resolve project directory %q: %w", p, err)
	}

	// A project directory must resolve to itself: it is the root of trust,
	// so there is nothing to escape it, only a check that it is not itself
	// a symlink pointing somewhere unexpected is implicit in using the
	// resolved form from here on.
	return resolved, nil
}

// ValidateRelativePath resolves rel against projectDir (which must already
// be a value returned by ValidateProjectDir), ensures the resolved real path
// remains under projectDir, and rejects symlink escape. All file I/O in the
// state, worker, and verify packages goes through this before touching disk.
func ValidateRelativePath(projectDir, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("relative path must not be empty")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("relative path %q must not be absolute", rel)
	}
	if containsDotDot(rel) {
		return "", fmt.Errorf("relative path %q must not contain .. segments", rel)
	}

	joined := filepath.Join(projectDir, rel)

	// The target may not exist yet (we are often about to create it), so we
	// resolve the deepest existing ancestor and require that ancestor to
	// still be under projectDir; a symlink planted partway down the chain
	// is caught because EvalSymlinks follows every existing component.
	resolved, err := resolveExisting(joined)
	if err != nil {
		return "", fmt.Errorf("resolve relative path %q: %w", rel, err)
	}

	resolvedProjectDir, err := resolveExisting(projectDir)
	if err != nil {
		return "", fmt.Errorf("resolve project directory: %w", err)
	}

	if resolved != resolvedProjectDir && !strings.HasPrefix(resolved, resolvedProjectDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes project directory", rel)
	}

	return joined, nil
}

// containsDotDot reports whether any segment of p, split on "/" or "\", is
// exactly "..". The raw path is checked before any cleaning, so "a/../b" is
// rejected even though it would clean to "b"; empty segments left by
// redundant separators are skipped.
func containsDotDot(p string) bool {
	for _, part := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}

// resolveExisting walks up from path until it finds a component that
// exists, resolves symlinks on that existing prefix, and rejoins the
// non-existent suffix. This lets ValidateRelativePath validate paths that
// are about to be created (e.g. a brand-new prompt file) without requiring
// the full path to already exist.
func resolveExisting(path string) (string, error) {
	path = filepath.Clean(path)

	suffix := ""
	cur := path
	for {
		if _, err := os.Lstat(cur); err == nil {
			resolved, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", err
			}
			if suffix == "" {
				return resolved, nil
			}
			return filepath.Join(resolved, suffix), nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached the filesystem root without finding an existing
			// component; nothing to resolve against.
			return path, nil
		}
		base := filepath.Base(cur)
		if suffix == "" {
			suffix = base
		} else {
			suffix = filepath.Join(base, suffix)
		}
		cur = parent
	}
}
