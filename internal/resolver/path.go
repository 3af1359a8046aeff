package resolver

import (
	"path/filepath"
	"strings"
)

// validatePath rejects a dependency's path field if it would escape the
// cloned repository root once joined against it, per §8's boundary
// behavior. This is a purely lexical check — no repository needs to exist
// yet — mirroring the same-workspace defense used elsewhere in the
// ecosystem for template/upgrade source resolution.
func validatePath(path string) error {
	if path == "" {
		return nil
	}
	if filepath.IsAbs(path) {
		return ErrInvalidPath
	}

	clean := filepath.ToSlash(filepath.Clean(path))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return ErrInvalidPath
	}
	return nil
}
