package analyzer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recbz-go/recbz/pkg/codec"
	"github.com/recbz-go/recbz/pkg/page"
)

func samplePages(t *testing.T, dir string, n int) []*page.Page {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))

	var pages []*page.Page
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, string(rune('a'+i))+".jpg")
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
		pages = append(pages, page.New(path))
	}
	return pages
}

func TestRunRanksCandidatesWithSourcePrepended(t *testing.T) {
	dir := t.TempDir()
	pages := samplePages(t, dir, 3)

	results, err := Run(context.Background(), pages, dir, Options{Quality: 80, Parallelism: 2})
	require.NoError(t, err)
	require.True(t, len(results) >= 2)
	assert.True(t, results[0].Source)

	for i := 1; i < len(results); i++ {
		if i > 1 {
			assert.GreaterOrEqual(t, results[i].Bytes, results[i-1].Bytes)
		}
		assert.False(t, results[i].Source)
	}
}

func TestRunRespectsBlacklist(t *testing.T) {
	dir := t.TempDir()
	pages := samplePages(t, dir, 2)

	results, err := Run(context.Background(), pages, dir, Options{
		Quality:   80,
		Blacklist: []codec.Name{codec.PNG, codec.WebP, codec.WebPLossless},
	})
	require.NoError(t, err)
	require.Len(t, results, 2) // source + jpeg only
	assert.Equal(t, codec.JPEG, results[1].Name)
}

func TestRunErrorsWhenBlacklistExhaustsCandidates(t *testing.T) {
	dir := t.TempDir()
	pages := samplePages(t, dir, 1)

	_, err := Run(context.Background(), pages, dir, Options{
		Blacklist: []codec.Name{codec.JPEG, codec.PNG, codec.WebP, codec.WebPLossless},
	})
	assert.Error(t, err)
}
