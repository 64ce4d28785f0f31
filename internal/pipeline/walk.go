package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rotisserie/eris"
)

// WalkFunc receives one discovered file: its absolute path, its path
// relative to the walk root (including the filename), and the bare name.
type WalkFunc func(absPath, relPath, name string) error

// walkTree discovers files depth-first under root, accumulating the
// relative path context used for classification. Hidden entries are
// skipped, directories are traversed but never yielded, and recursion is
// capped defensively at maxDepth. Exclude globs are matched against the
// relative path.
func walkTree(root string, maxDepth int, excludeGlobs []string, fn WalkFunc) error {
	if maxDepth <= 0 {
		maxDepth = 32
	}
	return walkDir(root, "", maxDepth, excludeGlobs, fn)
}

func walkDir(dir, rel string, depth int, excludeGlobs []string, fn WalkFunc) error {
	if depth <= 0 {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return eris.Wrapf(err, "walk: read dir %s", dir)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		abs := filepath.Join(dir, name)
		childRel := filepath.Join(rel, name)
		if excluded(childRel, excludeGlobs) {
			continue
		}

		if entry.IsDir() {
			if err := walkDir(abs, childRel, depth-1, excludeGlobs, fn); err != nil {
				return err
			}
			continue
		}

		if err := fn(abs, childRel, name); err != nil {
			return err
		}
	}
	return nil
}

func excluded(rel string, globs []string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}
