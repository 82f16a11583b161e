package archivewriter

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recbz-go/recbz/pkg/page"
)

func writeFixturePage(t *testing.T, dir, name string) *page.Page {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("fake-image-bytes"), 0o644))
	return page.New(path)
}

func TestWriteZipSingleChapterIsFlat(t *testing.T) {
	dir := t.TempDir()
	chapters := [][]*page.Page{
		{writeFixturePage(t, dir, "a.jpg"), writeFixturePage(t, dir, "b.jpg")},
	}

	dest := filepath.Join(dir, "out.cbz")
	_, err := WriteZip(dest, chapters, ZipOptions{Comment: "repacked with reCBZ"})
	require.NoError(t, err)

	r, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, names)
	assert.Equal(t, "repacked with reCBZ", r.Comment)
}

func TestWriteZipSingleChapterPreservesSourceSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	a := writeFixturePage(t, dir, "a.jpg")
	b := writeFixturePage(t, sub, "a.jpg") // same basename, different subdirectory
	a.SetCacheRelPath("a.jpg")
	b.SetCacheRelPath("sub/a.jpg")

	chapters := [][]*page.Page{{a, b}}

	dest := filepath.Join(dir, "out.cbz")
	_, err := WriteZip(dest, chapters, ZipOptions{Comment: "x"})
	require.NoError(t, err)

	r, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"a.jpg", "sub/a.jpg"}, names)
}

func TestWriteZipMultiChapterPrefixesDirectories(t *testing.T) {
	dir := t.TempDir()
	chapters := [][]*page.Page{
		{writeFixturePage(t, dir, "a.jpg")},
		{writeFixturePage(t, dir, "b.jpg")},
	}

	dest := filepath.Join(dir, "out.cbz")
	_, err := WriteZip(dest, chapters, ZipOptions{ChapterPrefix: "v", Comment: "x"})
	require.NoError(t, err)

	r, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"v1/a.jpg", "v2/b.jpg"}, names)
}

func TestWriteZipCompressUsesDeflate(t *testing.T) {
	dir := t.TempDir()
	chapters := [][]*page.Page{{writeFixturePage(t, dir, "a.jpg")}}

	dest := filepath.Join(dir, "out.cbz")
	_, err := WriteZip(dest, chapters, ZipOptions{Compress: true})
	require.NoError(t, err)

	r, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer r.Close()
	require.Len(t, r.File, 1)
	assert.Equal(t, zip.Deflate, r.File[0].Method)
}
