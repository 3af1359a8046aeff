package orchestrator

import (
	"crypto/sha256"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fpm-dev/fpm/internal/resolver"
)

// dirDiffers reports whether two directory trees hold different content,
// comparing relative paths and file contents only (not permissions or
// modification times). A missing tree is treated as empty, so a present
// side with any file always differs from an absent one.
func dirDiffers(a, b string) (bool, error) {
	snapA, err := snapshotTree(a)
	if err != nil {
		return false, err
	}
	snapB, err := snapshotTree(b)
	if err != nil {
		return false, err
	}
	if len(snapA) != len(snapB) {
		return true, nil
	}
	for rel, sum := range snapA {
		other, ok := snapB[rel]
		if !ok || other != sum {
			return true, nil
		}
	}
	return false, nil
}

func snapshotTree(root string) (map[string][sha256.Size]byte, error) {
	snap := make(map[string][sha256.Size]byte)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return snap, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == fpmDir && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() == resolver.MarkerFileName {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		snap[filepath.ToSlash(rel)] = sha256.Sum256(data)
		return nil
	})
	return snap, err
}
