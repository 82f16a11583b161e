// Package page models a single extracted archive page: a path on disk plus
// the lazy decode/encode lifecycle the transform kernel and worker pool
// drive it through. A Page is deliberately small enough to cross a worker
// pool boundary by path alone, the way the teacher's cache entries do.
package page

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/recbz-go/recbz/pkg/codec"
	"github.com/recbz-go/recbz/pkg/rcerr"
)

// Page is a single page image, identified by its path. It decodes lazily:
// constructing a Page does no I/O, and Image() only reads the file the
// first time it's called, caching the result until Close or Save discards
// it.
type Page struct {
	Path string
	Name string
	Stem string
	// CacheRelPath is the page's path relative to the archive's local
	// cache root, slash-separated regardless of OS, used for in-archive
	// placement. Empty for a Page not sourced from an archive extraction
	// (e.g. one inserted via Archive.AddPage), in which case Name is used
	// directly as the in-archive entry name.
	CacheRelPath string

	format *codec.Format
	img    image.Image
}

// New wraps an existing file on disk as a Page. It does not touch the
// filesystem.
func New(path string) *Page {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return &Page{Path: path, Name: name, Stem: stem}
}

// SetCacheRelPath records p's path relative to the archive's local cache
// root, called once at extraction time.
func (p *Page) SetCacheRelPath(rel string) {
	p.CacheRelPath = rel
}

// ArchiveName returns the name this page should be written under inside
// an output archive: its cache-relative path when known (preserving the
// source archive's subdirectory layout), falling back to its bare file
// name otherwise.
func (p *Page) ArchiveName() string {
	if p.CacheRelPath != "" {
		return p.CacheRelPath
	}
	return p.Name
}

// Format detects and caches the page's on-disk encoding by peeking its
// header bytes, independent of its file extension.
func (p *Page) Format() (*codec.Format, error) {
	if p.format != nil {
		return p.format, nil
	}
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, rcerr.PageIOError(p.Name, err)
	}
	defer f.Close()

	fmtMatch, _, err := codec.DetectReader(f)
	if err != nil {
		return nil, err
	}
	p.format = fmtMatch
	return fmtMatch, nil
}

// SetFormat overrides the cached format, so later Format calls return f
// without reading the file.
func (p *Page) SetFormat(f *codec.Format) {
	p.format = f
}

// Image decodes the page into memory, caching the result across calls
// until Close or Save clears it.
func (p *Page) Image() (image.Image, error) {
	if p.img != nil {
		return p.img, nil
	}
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: decode image", p.Path)
	}
	p.img = img
	return img, nil
}

// SetImage installs a decoded/transformed image into the page's cache
// without touching disk, used between transform steps.
func (p *Page) SetImage(img image.Image) {
	p.img = img
}

// Size returns the page's pixel dimensions, decoding it if necessary.
func (p *Page) Size() (width, height int, err error) {
	img, err := p.Image()
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// Landscape reports whether the page is wider than it is tall.
func (p *Page) Landscape() (bool, error) {
	w, h, err := p.Size()
	if err != nil {
		return false, err
	}
	return w > h, nil
}

// Save encodes the page's cached image with fmt at the given quality and
// writes it atomically into destDir (inside the page's cache-relative
// subdirectory, if it has one), named from the page's stem and the
// format's primary extension. On success it releases p's decoded image and
// returns a fresh Page pointing at the written file, with an empty decode
// cache.
func (p *Page) Save(destDir string, fmt *codec.Format, quality int) (*Page, error) {
	if p.img == nil {
		return nil, errors.Errorf("%s: Save called with no image loaded", p.Path)
	}
	ext := fmt.Extensions[0]

	// Preserve the source archive's subdirectory layout on disk too, so
	// two pages with the same basename from different subdirectories
	// never collide on the same output path.
	relDir := filepath.Dir(filepath.FromSlash(p.CacheRelPath))
	outDir := destDir
	if relDir != "." && relDir != "" {
		outDir = filepath.Join(destDir, relDir)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	destPath := filepath.Join(outDir, p.Stem+ext)
	tmpPath := destPath + ".tmp"

	out, err := os.Create(tmpPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer func() {
		out.Close()
		os.Remove(tmpPath)
	}()

	if err := fmt.Save(out, p.img, quality); err != nil {
		return nil, errors.Wrapf(err, "%s: encode", destPath)
	}
	if err := out.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return nil, errors.WithStack(err)
	}
	p.img = nil

	saved := New(destPath)
	saved.format = fmt
	if p.CacheRelPath != "" {
		if relDir == "." || relDir == "" {
			saved.CacheRelPath = saved.Name
		} else {
			saved.CacheRelPath = filepath.ToSlash(filepath.Join(relDir, saved.Name))
		}
	}
	return saved, nil
}

// Close releases the page's decoded image from memory without touching
// disk.
func (p *Page) Close() {
	p.img = nil
}
