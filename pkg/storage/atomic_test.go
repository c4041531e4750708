package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingFileCommit(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "a.jpg")

	pf, err := Create(dest)
	require.NoError(t, err)

	_, err = pf.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = pf.Write([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), pf.Written())

	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "destination must not exist before commit")

	require.NoError(t, pf.Commit())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	_, err = os.Stat(pf.TempPath())
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, pf.Abort(), "abort after commit is a no-op")
}

func TestPendingFileAbort(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "b.png")

	pf, err := Create(dest)
	require.NoError(t, err)
	_, err = pf.Write([]byte("partial"))
	require.NoError(t, err)

	require.NoError(t, pf.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial files left behind")
}

func TestPendingFileReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "c.gif")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	require.NoError(t, WriteBytes(dest, []byte("new")))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriteFileCleansUpOnReadError(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "d.webm")

	_, err := WriteFile(dest, failingReader{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "connection reset"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
