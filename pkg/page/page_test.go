package page

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recbz-go/recbz/pkg/codec"
)

func landscapeImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 5, A: 255})
		}
	}
	return img
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := New(filepath.Join(dir, "page001.png"))
	src.SetImage(landscapeImage())

	pngFmt, err := codec.Lookup(codec.PNG)
	require.NoError(t, err)

	saved, err := src.Save(dir, pngFmt, 0)
	require.NoError(t, err)
	assert.Equal(t, "page001.png", saved.Name)
	assert.Equal(t, "page001", saved.Stem)

	f, err := saved.Format()
	require.NoError(t, err)
	assert.Equal(t, codec.PNG, f.Name)

	w, h, err := saved.Size()
	require.NoError(t, err)
	assert.Equal(t, 8, w)
	assert.Equal(t, 4, h)

	landscape, err := saved.Landscape()
	require.NoError(t, err)
	assert.True(t, landscape)
}

func TestSaveWithoutImageFails(t *testing.T) {
	dir := t.TempDir()
	p := New(filepath.Join(dir, "page001.png"))
	pngFmt, _ := codec.Lookup(codec.PNG)
	_, err := p.Save(dir, pngFmt, 0)
	assert.Error(t, err)
}

func TestNewDerivesNameAndStem(t *testing.T) {
	p := New("/tmp/cache/v01/page010.jpeg")
	assert.Equal(t, "page010.jpeg", p.Name)
	assert.Equal(t, "page010", p.Stem)
}

func TestArchiveNameFallsBackToName(t *testing.T) {
	p := New("/tmp/cache/page001.png")
	assert.Equal(t, "page001.png", p.ArchiveName())
}

func TestArchiveNameUsesCacheRelPath(t *testing.T) {
	p := New("/tmp/cache/sub/page001.png")
	p.SetCacheRelPath("sub/page001.png")
	assert.Equal(t, "sub/page001.png", p.ArchiveName())
}

func TestSavePreservesCacheRelPathSubdirectory(t *testing.T) {
	dir := t.TempDir()
	src := New(filepath.Join(dir, "extract", "sub", "page001.png"))
	src.SetCacheRelPath("sub/page001.png")
	src.SetImage(landscapeImage())

	pngFmt, err := codec.Lookup(codec.PNG)
	require.NoError(t, err)

	saved, err := src.Save(dir, pngFmt, 0)
	require.NoError(t, err)
	assert.Equal(t, "sub/page001.png", saved.ArchiveName())
	assert.FileExists(t, filepath.Join(dir, "sub", "page001.png"))
}

func TestSaveAvoidsSameBasenameCollisionAcrossSubdirectories(t *testing.T) {
	dir := t.TempDir()
	pngFmt, err := codec.Lookup(codec.PNG)
	require.NoError(t, err)

	a := New(filepath.Join(dir, "extract", "v01", "page001.png"))
	a.SetCacheRelPath("v01/page001.png")
	a.SetImage(landscapeImage())
	savedA, err := a.Save(dir, pngFmt, 0)
	require.NoError(t, err)

	b := New(filepath.Join(dir, "extract", "v02", "page001.png"))
	b.SetCacheRelPath("v02/page001.png")
	b.SetImage(landscapeImage())
	savedB, err := b.Save(dir, pngFmt, 0)
	require.NoError(t, err)

	assert.NotEqual(t, savedA.Path, savedB.Path)
	assert.FileExists(t, savedA.Path)
	assert.FileExists(t, savedB.Path)
}
