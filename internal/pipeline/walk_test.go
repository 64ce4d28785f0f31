package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestWalkTree(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "top.pdf"))
	writeTestFile(t, filepath.Join(root, "bank", "statement.pdf"))
	writeTestFile(t, filepath.Join(root, "bank", "2024", "march.pdf"))
	writeTestFile(t, filepath.Join(root, ".hidden", "secret.pdf"))
	writeTestFile(t, filepath.Join(root, "bank", ".DS_Store"))

	var rels []string
	err := walkTree(root, 0, nil, func(abs, rel, name string) error {
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"top.pdf", "bank/statement.pdf", "bank/2024/march.pdf"}, rels)
}

func TestWalkTreeExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "keep.pdf"))
	writeTestFile(t, filepath.Join(root, "tmp", "scratch.pdf"))
	writeTestFile(t, filepath.Join(root, "bank", "statement.bak"))

	var rels []string
	err := walkTree(root, 0, []string{"tmp/**", "**/*.bak"}, func(abs, rel, name string) error {
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"keep.pdf"}, rels)
}

func TestWalkTreeDepthCap(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a", "shallow.pdf"))
	writeTestFile(t, filepath.Join(root, "a", "b", "c", "deep.pdf"))

	var rels []string
	err := walkTree(root, 2, nil, func(abs, rel, name string) error {
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a/shallow.pdf"}, rels)
}

func TestWalkTreeMissingRoot(t *testing.T) {
	err := walkTree(filepath.Join(t.TempDir(), "missing"), 0, nil, func(abs, rel, name string) error {
		t.Fatal("callback must not fire")
		return nil
	})
	assert.Error(t, err)
}
