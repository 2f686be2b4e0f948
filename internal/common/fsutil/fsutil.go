// Package fsutil holds small path helpers shared by the artifact and
// manifest loaders.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// ResolveFrom resolves p against base. Empty, absolute and '~' paths are
// not joined; '~' is expanded.
func ResolveFrom(base, p string) (string, error) {
	if p == "" || filepath.IsAbs(p) {
		return p, nil
	}
	if strings.HasPrefix(p, "~") {
		return ExpandHome(p)
	}
	return filepath.Join(base, p), nil
}

// PathExists reports whether path exists. Errors other than "not exist"
// count as existing so callers surface them on open.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
