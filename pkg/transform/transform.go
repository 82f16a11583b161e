// Package transform implements the per-page conversion kernel: decode,
// detect, optionally grayscale and resize, then re-encode into a target
// format. It's a pure function of its inputs and writes exactly one output
// file; the worker pool is what fans it out across pages.
package transform

import (
	"image"
	"image/color"

	stddraw "image/draw"

	"golang.org/x/image/draw"

	"github.com/pkg/errors"

	"github.com/recbz-go/recbz/pkg/codec"
	"github.com/recbz-go/recbz/pkg/page"
	"github.com/recbz-go/recbz/pkg/rcerr"
)

// Filter selects the resampling kernel used when resizing a page.
type Filter int

const (
	// FilterCatmullRom is the default: a high-quality cubic filter. The
	// reference implementation's default resampling filter (Lanczos) has no
	// equivalent in golang.org/x/image/draw, so this is the closest quality
	// tier the library offers.
	FilterCatmullRom Filter = iota
	FilterBiLinear
	FilterNearestNeighbor
)

func (f Filter) interpolator() draw.Interpolator {
	switch f {
	case FilterBiLinear:
		return draw.BiLinear
	case FilterNearestNeighbor:
		return draw.NearestNeighbor
	default:
		return draw.CatmullRom
	}
}

// Options configures one Transform call. A zero value performs no
// transformation at all beyond a straight re-decode/re-encode of the
// source page (still useful, since it lets a page be renamed into a
// destination directory).
type Options struct {
	// TargetFormat is the format to save as. Nil means keep the page's
	// detected source format.
	TargetFormat *codec.Format
	Quality      int
	Grayscale    bool
	// TargetWidth/TargetHeight are the requested page dimensions; zero
	// means no resizing at all.
	TargetWidth  int
	TargetHeight int
	NoUpscale    bool
	NoDownscale  bool
	Filter       Filter
}

// Run executes the transform kernel against one source page, writing its
// result into destDir and returning the new Page. A nil, nil return never
// happens: callers that want to skip bad pages (InvalidImageFormat,
// PageIOError) check for those rcerr kinds and decide whether to ignore.
func Run(src *page.Page, opts Options, destDir string) (*page.Page, error) {
	sourceFmt, err := src.Format()
	if err != nil {
		return nil, err
	}

	img, err := src.Image()
	if err != nil {
		return nil, rcerr.PageIOError(src.Name, err)
	}

	targetFmt := opts.TargetFormat
	if targetFmt == nil {
		targetFmt = sourceFmt
	}

	if targetFmt.Name == codec.JPEG {
		img = ensureRGB(img)
	}

	if opts.Grayscale {
		img = toGrayscale(img)
	}

	if opts.TargetWidth > 0 && opts.TargetHeight > 0 {
		img, err = resize(img, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: resize", src.Name)
		}
	}

	src.SetImage(img)
	saved, err := src.Save(destDir, targetFmt, opts.Quality)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: save", src.Name)
	}
	return saved, nil
}

// ensureRGB prepares img for the JPEG encoder: YCbCr images (as JPEG
// itself decodes to) and Gray images are returned unchanged; every other
// color model (paletted, RGBA, NRGBA, ...) is copied into a new
// *image.RGBA.
func ensureRGB(img image.Image) image.Image {
	switch img.ColorModel() {
	case color.YCbCrModel, color.GrayModel:
		return img
	}
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	stddraw.Draw(out, bounds, img, bounds.Min, stddraw.Src)
	return out
}

func toGrayscale(img image.Image) image.Image {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	stddraw.Draw(gray, bounds, img, bounds.Min, stddraw.Src)
	return gray
}

// resize scales img to the requested target dimensions, swapping width and
// height for a landscape source so its aspect ratio is preserved against a
// portrait-oriented target box, then honoring the no-upscale/no-downscale
// flags the way the reference implementation does: skip entirely unless
// the applicable direction is allowed.
func resize(img image.Image, opts Options) (image.Image, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	targetWidth, targetHeight := opts.TargetWidth, opts.TargetHeight
	if width > height {
		targetWidth, targetHeight = targetHeight, targetWidth
	}

	downscaling := width > targetWidth && height > targetHeight
	switch {
	case downscaling && opts.NoDownscale:
		return img, nil
	case !downscaling && opts.NoUpscale:
		return img, nil
	}

	dst := newLike(img, targetWidth, targetHeight)
	opts.Filter.interpolator().Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst, nil
}

// newLike allocates a destination image of the requested size, preserving
// a grayscale source's color model so resizing a grayscale page doesn't
// needlessly promote it back to RGBA.
func newLike(img image.Image, w, h int) stddraw.Image {
	r := image.Rect(0, 0, w, h)
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return image.NewGray(r)
	default:
		return image.NewRGBA(r)
	}
}
