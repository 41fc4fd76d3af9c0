package vfs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFS_WriteFileReplaces(t *testing.T) {
	fsys := NewOSFS()
	target := filepath.Join(t.TempDir(), "script.py")

	require.NoError(t, fsys.WriteFile(target, []byte("print('one')\n"), 0o644))
	require.NoError(t, fsys.WriteFile(target, []byte("print('two')\n"), 0o644))

	data, err := fsys.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "print('two')\n", string(data))

	// No temporary files are left behind in the directory.
	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOSFS_WriteFileNewPermissions(t *testing.T) {
	fsys := NewOSFS()
	target := filepath.Join(t.TempDir(), "settings.json")

	require.NoError(t, fsys.WriteFile(target, []byte("{}"), 0o640))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestOSFS_WriteFileMissingDir(t *testing.T) {
	fsys := NewOSFS()
	target := filepath.Join(t.TempDir(), "missing", "a.py")

	err := fsys.WriteFile(target, []byte("x"), 0o644)
	require.Error(t, err)

	var pe *PathError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "write", pe.Op)
	assert.False(t, fsys.Exists(target))
}

func TestOSFS_Queries(t *testing.T) {
	fsys := NewOSFS()
	dir := t.TempDir()
	file := filepath.Join(dir, "f.py")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.True(t, fsys.Exists(dir))
	assert.True(t, fsys.IsDir(dir))
	assert.False(t, fsys.IsRegular(dir))
	assert.True(t, fsys.IsRegular(file))
	assert.False(t, fsys.Exists(filepath.Join(dir, "nope")))
}

func TestMemFS_AddFile(t *testing.T) {
	fsys := NewMemFS()

	require.NoError(t, fsys.AddFile("/a/b/c/file.txt", "content"))

	assert.True(t, fsys.Exists("/a/b/c/file.txt"))
	assert.True(t, fsys.IsDir("/a/b/c"))
	assert.True(t, fsys.IsDir("/a/b"))
}

func TestMemFS_ReadMissing(t *testing.T) {
	fsys := NewMemFS()

	_, err := fsys.ReadFile("/nope.py")
	assert.True(t, IsNotExist(err))
}

func TestMemFS_WriteNeedsParent(t *testing.T) {
	fsys := NewMemFS()

	err := fsys.WriteFile("/missing/a.py", []byte("x"), 0o644)
	assert.True(t, IsNotExist(err))
}

func TestMemFS_FailWritesKeepsContent(t *testing.T) {
	fsys := NewMemFS()
	require.NoError(t, fsys.AddFile("/w/a.py", "original"))

	boom := errors.New("disk full")
	fsys.FailWrites(boom)
	err := fsys.WriteFile("/w/a.py", []byte("new"), 0o644)
	require.ErrorIs(t, err, boom)

	data, err := fsys.ReadFile("/w/a.py")
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	fsys.FailWrites(nil)
	require.NoError(t, fsys.WriteFile("/w/a.py", []byte("new"), 0o644))
}

func TestPathError(t *testing.T) {
	err := NewPathError("read", "/test.txt", ErrNotFound)

	assert.Equal(t, "read /test.txt: file does not exist", err.Error())
	assert.True(t, IsNotExist(err))
}
