package transform

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recbz-go/recbz/pkg/codec"
	"github.com/recbz-go/recbz/pkg/page"
)

func writeSourcePNG(t *testing.T, dir, name string, w, h int) *page.Page {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 50, A: 255})
		}
	}
	p := page.New(filepath.Join(dir, name))
	p.SetImage(img)
	pngFmt, _ := codec.Lookup(codec.PNG)
	saved, err := p.Save(dir, pngFmt, 0)
	require.NoError(t, err)
	return saved
}

func TestRunRecodesToJPEG(t *testing.T) {
	dir := t.TempDir()
	src := writeSourcePNG(t, dir, "page001.png", 20, 10)

	jpegFmt, _ := codec.Lookup(codec.JPEG)
	out, err := Run(src, Options{TargetFormat: jpegFmt, Quality: 85}, dir)
	require.NoError(t, err)
	assert.Equal(t, "page001.jpeg", out.Name)

	f, err := out.Format()
	require.NoError(t, err)
	assert.Equal(t, codec.JPEG, f.Name)
}

func TestRunGrayscale(t *testing.T) {
	dir := t.TempDir()
	src := writeSourcePNG(t, dir, "page001.png", 20, 10)

	pngFmt, _ := codec.Lookup(codec.PNG)
	out, err := Run(src, Options{TargetFormat: pngFmt, Grayscale: true}, dir)
	require.NoError(t, err)

	img, err := out.Image()
	require.NoError(t, err)
	_, isGray := img.(*image.Gray)
	assert.True(t, isGray)
}

func TestRunResizeLandscapeSwapsPortraitTarget(t *testing.T) {
	dir := t.TempDir()
	// landscape source: wider than tall
	src := writeSourcePNG(t, dir, "page001.png", 200, 100)

	pngFmt, _ := codec.Lookup(codec.PNG)
	out, err := Run(src, Options{
		TargetFormat: pngFmt,
		TargetWidth:  60,
		TargetHeight: 100,
	}, dir)
	require.NoError(t, err)

	w, h, err := out.Size()
	require.NoError(t, err)
	// target box was swapped to (100,60) because the source is landscape
	assert.Equal(t, 100, w)
	assert.Equal(t, 60, h)
}

func TestRunSkipsUpscaleWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	src := writeSourcePNG(t, dir, "page001.png", 20, 40)

	pngFmt, _ := codec.Lookup(codec.PNG)
	out, err := Run(src, Options{
		TargetFormat: pngFmt,
		TargetWidth:  200,
		TargetHeight: 400,
		NoUpscale:    true,
	}, dir)
	require.NoError(t, err)

	w, h, err := out.Size()
	require.NoError(t, err)
	assert.Equal(t, 20, w)
	assert.Equal(t, 40, h)
}

func TestRunSkipsDownscaleWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	src := writeSourcePNG(t, dir, "page001.png", 200, 400)

	pngFmt, _ := codec.Lookup(codec.PNG)
	out, err := Run(src, Options{
		TargetFormat: pngFmt,
		TargetWidth:  20,
		TargetHeight: 40,
		NoDownscale:  true,
	}, dir)
	require.NoError(t, err)

	w, h, err := out.Size()
	require.NoError(t, err)
	assert.Equal(t, 200, w)
	assert.Equal(t, 400, h)
}
