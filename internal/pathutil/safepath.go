package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// IsPlainName reports whether name is a single path element: non-empty,
// no separators, and not a dot segment.
func IsPlainName(name string) bool {
	if name == "" || HasDotSegments(name) {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// RepoRoot returns the parent of the directory holding exe, so a binary
// installed at <root>/bin/tool resolves to <root>.
func RepoRoot(exe string) string {
	return filepath.Dir(filepath.Dir(filepath.Clean(exe)))
}

// ExecutableRepoRoot resolves the running binary (following symlinks) and
// returns its RepoRoot.
func ExecutableRepoRoot() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return RepoRoot(exe), nil
}
