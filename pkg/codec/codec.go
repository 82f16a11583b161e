// Package codec is the registry of page image formats recbz can read,
// write and compare: JPEG, PNG, lossy WebP and lossless WebP. Everything
// downstream (the transform kernel, the analyzer) works against this
// registry instead of hard-coding format names.
package codec

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/deepteams/webp"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"

	"github.com/recbz-go/recbz/pkg/rcerr"
)

// Name identifies a registered format by its CLI-facing short name.
type Name string

const (
	JPEG         Name = "jpeg"
	PNG          Name = "png"
	WebP         Name = "webp"
	WebPLossless Name = "webpll"
)

// Format describes one entry in the registry: how to save a decoded image
// at a given quality, and what a page's name/extension/magic bytes say
// about whether it already is this format.
type Format struct {
	Name        Name
	Extensions  []string
	Description string
	Lossless    bool
	// Save writes img to w at the given quality (0-100). Lossless formats
	// ignore quality except where noted.
	Save func(w io.Writer, img image.Image, quality int) error
}

var registry = []*Format{
	{
		Name:        JPEG,
		Extensions:  []string{".jpeg", ".jpg"},
		Description: "JPEG",
		Lossless:    false,
		Save: func(w io.Writer, img image.Image, quality int) error {
			return errors.WithStack(jpeg.Encode(w, img, &jpeg.Options{Quality: quality}))
		},
	},
	{
		Name:        WebP,
		Extensions:  []string{".webp"},
		Description: "WebP",
		Lossless:    false,
		Save: func(w io.Writer, img image.Image, quality int) error {
			return errors.WithStack(webp.Encode(w, img, &webp.EncoderOptions{
				Lossless: false,
				Quality:  float32(quality),
				Method:   5,
			}))
		},
	},
	{
		Name:        WebPLossless,
		Extensions:  []string{".webp"},
		Description: "WebP Lossless",
		Lossless:    true,
		Save: func(w io.Writer, img image.Image, quality int) error {
			// quality mirrors libwebp's lossless compression-effort knob here,
			// not image fidelity; 100 matches the reference encoder's default.
			return errors.WithStack(webp.Encode(w, img, &webp.EncoderOptions{
				Lossless: true,
				Quality:  100,
				Method:   4,
			}))
		},
	},
	{
		Name:        PNG,
		Extensions:  []string{".png"},
		Description: "PNG",
		Lossless:    true,
		Save: func(w io.Writer, img image.Image, quality int) error {
			enc := png.Encoder{CompressionLevel: png.BestCompression}
			return errors.WithStack(enc.Encode(w, img))
		},
	},
}

// All returns every registered format, in a stable canonical order
// (source order above: jpeg, webp, webpll, png).
func All() []*Format {
	out := make([]*Format, len(registry))
	copy(out, registry)
	return out
}

// Lookup resolves a CLI-facing format name to its Format.
func Lookup(name Name) (*Format, error) {
	for _, f := range registry {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, rcerr.InvalidFormatName(string(name))
}

// WithoutBlacklist returns every registered format whose Name is not in
// blacklist.
func WithoutBlacklist(blacklist []Name) []*Format {
	if len(blacklist) == 0 {
		return All()
	}
	skip := make(map[Name]bool, len(blacklist))
	for _, n := range blacklist {
		skip[n] = true
	}
	var out []*Format
	for _, f := range registry {
		if !skip[f.Name] {
			out = append(out, f)
		}
	}
	return out
}

// Detect inspects the leading bytes of an encoded image and returns the
// registered Format it was saved as. For WebP it distinguishes lossy from
// lossless by peeking the RIFF sub-chunk FourCC at byte offset 12-15: a
// "VP8L" chunk is lossless, "VP8 " (and the extended "VP8X" container) is
// treated as lossy.
func Detect(header []byte) (*Format, error) {
	mt := mimetype.Detect(header)
	switch {
	case mt.Is("image/jpeg"):
		return Lookup(JPEG)
	case mt.Is("image/png"):
		return Lookup(PNG)
	case mt.Is("image/webp"):
		if len(header) >= 16 && header[15] == 'L' {
			return Lookup(WebPLossless)
		}
		return Lookup(WebP)
	default:
		return nil, rcerr.InvalidImageFormat(mt.String())
	}
}

// DetectReader is Detect for a reader whose first bytes haven't been read
// yet; it peeks up to 64 bytes (more than enough for every format header
// this registry cares about) without consuming r beyond what's necessary
// for the caller, who is expected to re-open or seek back as needed.
func DetectReader(r io.Reader) (*Format, []byte, error) {
	buf := make([]byte, 64)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, nil, errors.WithStack(err)
	}
	buf = buf[:n]
	f, err := Detect(buf)
	return f, buf, err
}
