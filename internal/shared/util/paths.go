package util

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SlashPath turns a relative path into the '/'-separated form exclude
// globs are matched against. "." becomes the empty string.
func SlashPath(s string) string {
	clean := path.Clean(strings.TrimSpace(strings.ReplaceAll(s, "\\", "/")))
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// WithinRoot reports whether p is root itself or lies below it.
func WithinRoot(p, root string) bool {
	p = SlashPath(p)
	root = SlashPath(root)
	if p == "" || root == "" {
		return p == root
	}
	return p == root || strings.HasPrefix(p, strings.TrimSuffix(root, "/")+"/")
}

// WriteFileAtomic writes data next to path and renames it into place, so
// readers never observe a partially written report.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".pdepend-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", path, err)
	}
	tmpName := tmp.Name()

	writeErr := error(nil)
	if _, err := tmp.Write(data); err != nil {
		writeErr = fmt.Errorf("write temp file %q: %w", tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("chmod temp file %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("close temp file %q: %w", tmpName, err)
	}
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return writeErr
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %q: %w", path, err)
	}
	return nil
}
