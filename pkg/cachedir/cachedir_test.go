package cachedir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScopesUnderRoot(t *testing.T) {
	root, err := Root()
	require.NoError(t, err)

	dir, err := New("archive-one")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dir, root))

	other, err := New("archive-two")
	require.NoError(t, err)
	assert.NotEqual(t, dir, other)
}

func TestWriteEntryWritesEntryWithinSizeCap(t *testing.T) {
	dir := t.TempDir()
	data := strings.Repeat("x", 100)

	path, err := WriteEntry(dir, "page001.jpg", strings.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 100)
}

func TestWriteEntryRejectsTruncation(t *testing.T) {
	dir := t.TempDir()
	// claims 1000 bytes but the reader only has 10: the copy is short, and
	// size>0 with n<size should be treated as a failed extraction.
	_, err := WriteEntry(dir, "page001.jpg", strings.NewReader("0123456789"), 1000)
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "page001.jpg"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSweepLeavesOwnDirAlone(t *testing.T) {
	dir, err := New("archive-sweep")
	require.NoError(t, err)

	require.NoError(t, Sweep())

	_, err = os.Stat(dir)
	assert.NoError(t, err)
}
