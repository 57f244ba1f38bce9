package fileInfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello world"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "b.txt"), []byte("bee"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "nested", "c.bin"), []byte{0, 1, 2, 3}, 0o644))
	return root
}

func TestCreateNode_File(t *testing.T) {
	root := setupTree(t)

	node, err := CreateNode(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", node.Name)
	assert.False(t, node.IsDir)
	assert.Equal(t, int64(11), node.Size)
	assert.Contains(t, node.MimeType, "text/plain")
}

func TestCreateNode_Directory(t *testing.T) {
	root := setupTree(t)

	node, err := CreateNode(root)
	require.NoError(t, err)
	assert.True(t, node.IsDir)
	assert.Equal(t, int64(11+3+4), node.Size)

	files := node.Files()
	require.Len(t, files, 3)
	names := []string{files[0].Name, files[1].Name, files[2].Name}
	assert.ElementsMatch(t, []string{"a.txt", "b.txt", "c.bin"}, names)
}

func TestCollectFiles(t *testing.T) {
	root := setupTree(t)

	files, err := CollectFiles([]string{filepath.Join(root, "a.txt"), filepath.Join(root, "docs")})
	require.NoError(t, err)
	assert.Len(t, files, 3)

	_, err = CollectFiles([]string{filepath.Join(root, "missing")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileSHA256(t *testing.T) {
	root := setupTree(t)

	sum, err := FileSHA256(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", sum)

	_, err = FileSHA256(filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
