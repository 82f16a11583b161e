// Package cachedir manages the scratch directories recbz extracts archive
// pages into. Every process gets one root scratch directory tagged with a
// random id; every Archive gets its own subdirectory under that root, so
// concurrent Archive instances in the same process never collide and a
// crashed process's leftovers are easy to recognize and sweep on the next
// run.
package cachedir

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const prefix = "recbzcache-"

// maxEntrySize caps a single extracted page's size, guarding against a
// decompression bomb inside a malicious or corrupt archive.
const maxEntrySize = 200 * 1024 * 1024

var processTag = uuid.NewString()

// Root returns the process-global scratch root, creating it on first use.
func Root() (string, error) {
	root := filepath.Join(os.TempDir(), prefix+processTag)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", errors.WithStack(err)
	}
	return root, nil
}

// New allocates a fresh scratch directory for one Archive under the
// process root, named after label for easier debugging of a leftover
// directory.
func New(label string) (string, error) {
	root, err := Root()
	if err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp(root, label+"-")
	if err != nil {
		return "", errors.WithStack(err)
	}
	return dir, nil
}

// WriteEntry copies an archive entry's contents into dir/name, refusing to
// write more than maxEntrySize bytes and removing the partial file if the
// copy fails or is truncated by the size cap.
func WriteEntry(dir, name string, r io.Reader, size int64) (string, error) {
	destPath := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", errors.WithStack(err)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer out.Close()

	limit := size
	if limit <= 0 || limit > maxEntrySize {
		limit = maxEntrySize
	}
	n, err := io.Copy(out, io.LimitReader(r, limit))
	if err != nil {
		os.Remove(destPath)
		return "", errors.WithStack(err)
	}
	if size > 0 && n < size {
		os.Remove(destPath)
		return "", errors.Errorf("%s: truncated at %d of %d bytes (size cap or decompression bomb guard)", name, n, size)
	}
	return destPath, nil
}

// Sweep removes scratch directories created by other processes: every
// directory in os.TempDir() carrying the cache prefix but not this
// process's tag. It does not check whether the process that created one
// is still running.
func Sweep() error {
	tempDir := os.TempDir()
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return errors.WithStack(err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		if strings.Contains(entry.Name(), processTag) {
			continue
		}
		os.RemoveAll(filepath.Join(tempDir, entry.Name()))
	}
	return nil
}

// Cleanup removes this process's entire scratch root.
func Cleanup() error {
	root := filepath.Join(os.TempDir(), prefix+processTag)
	if err := os.RemoveAll(root); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
