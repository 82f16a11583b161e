package codec

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 50), G: uint8(y * 50), B: 10, A: 255})
		}
	}
	return img
}

func TestLookupKnownFormats(t *testing.T) {
	for _, name := range []Name{JPEG, PNG, WebP, WebPLossless} {
		f, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, f.Name)
	}
}

func TestLookupUnknownFormat(t *testing.T) {
	_, err := Lookup("tiff")
	assert.Error(t, err)
}

func TestWithoutBlacklist(t *testing.T) {
	got := WithoutBlacklist([]Name{WebP, WebPLossless})
	assert.Len(t, got, 2)
	for _, f := range got {
		assert.NotEqual(t, WebP, f.Name)
		assert.NotEqual(t, WebPLossless, f.Name)
	}
}

func TestDetectJPEGAndPNG(t *testing.T) {
	img := sampleImage()

	jpegFmt, err := Lookup(JPEG)
	require.NoError(t, err)
	var jpegBuf bytes.Buffer
	require.NoError(t, jpegFmt.Save(&jpegBuf, img, 80))
	detected, err := Detect(jpegBuf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, JPEG, detected.Name)

	pngFmt, err := Lookup(PNG)
	require.NoError(t, err)
	var pngBuf bytes.Buffer
	require.NoError(t, pngFmt.Save(&pngBuf, img, 0))
	detected, err = Detect(pngBuf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, PNG, detected.Name)
}

func TestDetectWebPLossyVsLossless(t *testing.T) {
	img := sampleImage()

	lossy, err := Lookup(WebP)
	require.NoError(t, err)
	var lossyBuf bytes.Buffer
	require.NoError(t, lossy.Save(&lossyBuf, img, 80))
	detected, err := Detect(lossyBuf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, WebP, detected.Name)

	lossless, err := Lookup(WebPLossless)
	require.NoError(t, err)
	var losslessBuf bytes.Buffer
	require.NoError(t, lossless.Save(&losslessBuf, img, 0))
	detected, err = Detect(losslessBuf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, WebPLossless, detected.Name)
}

func TestDetectUnknown(t *testing.T) {
	_, err := Detect([]byte("not an image at all"))
	assert.Error(t, err)
}
