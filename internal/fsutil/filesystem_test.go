package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem(t *testing.T) {
	var fsys FileSystem = OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "reports", "2026")
	require.NoError(t, fsys.MkdirAll(dir, 0o755))
	assert.True(t, fsys.Exists(dir))

	path := filepath.Join(dir, "s.html")
	assert.False(t, fsys.Exists(path))
	w, err := fsys.Create(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("<html></html>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(b))
}

func TestMemoryFileSystem(t *testing.T) {
	m := NewMemoryFileSystem()

	_, err := m.Create("/out/a.png")
	assert.True(t, errors.Is(err, fs.ErrNotExist), "parent must exist")

	require.NoError(t, m.MkdirAll("/out/charts", 0o755))
	assert.True(t, m.Exists("/out"))
	assert.True(t, m.Exists("/out/charts"))

	w, err := m.Create("/out/charts/a.png")
	require.NoError(t, err)
	_, err = w.Write([]byte("png"))
	require.NoError(t, err)

	got, err := m.ReadFile("/out/charts/a.png")
	require.NoError(t, err)
	assert.Empty(t, got, "contents appear on close")

	require.NoError(t, w.Close())
	got, err = m.ReadFile("/out/charts//a.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(got))
	assert.Equal(t, []string{"/out/charts/a.png"}, m.Files())

	_, err = m.ReadFile("/out/missing")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
