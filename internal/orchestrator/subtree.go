package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fpm-dev/fpm/internal/resolver"
)

// fpmDir is the name of the subdirectory holding nested bundle installs
// and is the one thing replaceSubtree must never clobber at the top
// level, per §4.3's path-semantics incremental-install requirement.
const fpmDir = ".fpm"

// gitDir is the name of the repository metadata directory a scratch clone
// must never lose when its working tree content is overwritten (push
// mirrors installDir's content onto one ahead of diffing/committing).
const gitDir = ".git"

// replaceSubtree atomically (at the directory-entry level) repopulates
// dst from src: every top-level entry of dst except fpmDir is removed,
// then every top-level entry of src except fpmDir is copied in. Nested
// .fpm/ directories from a previous install therefore survive a
// re-install, letting install stay incremental (§4.3).
//
// No third-party library in the retrieval pack offers directory-tree
// copying, so this walks the tree directly with os/filepath, the same
// primitives go-git itself uses under its billy.Filesystem abstraction.
func replaceSubtree(src, dst string) error {
	return mirrorTree(src, dst, fpmDir)
}

// mirrorSourceTree overwrites dst (a path inside a scratch git clone) with
// exactly the content of src (the corresponding installDir subtree),
// preserving dst's .git metadata. Used by push to make a scratch clone's
// working tree match what is currently on disk before diffing it against
// the clone's own HEAD.
func mirrorSourceTree(src, dst string) error {
	return mirrorTree(src, dst, gitDir)
}

// mirrorTree clears every top-level entry of dst except preserve, then
// copies in every top-level entry of src except preserve. fpmDir (a
// bundle's own nested dependency installs) and resolver.MarkerFileName
// (its install marker) are orchestrator bookkeeping rather than bundle
// content, so neither is ever cleared from dst nor copied from src,
// regardless of preserve.
func mirrorTree(src, dst, preserve string) error {
	skip := func(name string) bool {
		return name == preserve || name == fpmDir || name == resolver.MarkerFileName
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	existing, err := os.ReadDir(dst)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dst, err)
	}
	for _, e := range existing {
		if skip(e.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dst, e.Name())); err != nil {
			return fmt.Errorf("clearing %s: %w", filepath.Join(dst, e.Name()), err)
		}
	}

	incoming, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	for _, e := range incoming {
		if skip(e.Name()) {
			continue
		}
		if err := copyTree(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	if info.IsDir() {
		if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
			return fmt.Errorf("creating %s: %w", dst, err)
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return fmt.Errorf("reading %s: %w", src, err)
		}
		for _, e := range entries {
			if err := copyTree(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
				return err
			}
		}
		return nil
	}

	return copyFile(src, dst, info.Mode().Perm())
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
