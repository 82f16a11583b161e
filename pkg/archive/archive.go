// Package archive owns one input comic-book archive end to end: it
// extracts the input zip into a scoped cache, tracks the resulting pages
// as an ordered chapter index, drives conversion through the transform
// kernel and worker pool, and writes the rebuilt output.
package archive

import (
	"archive/zip"
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/recbz-go/recbz/pkg/analyzer"
	"github.com/recbz-go/recbz/pkg/archivewriter"
	"github.com/recbz-go/recbz/pkg/cachedir"
	"github.com/recbz-go/recbz/pkg/natural"
	"github.com/recbz-go/recbz/pkg/page"
	"github.com/recbz-go/recbz/pkg/rcerr"
	"github.com/recbz-go/recbz/pkg/transform"
	"github.com/recbz-go/recbz/pkg/workerpool"
)

// chapterPrefix is the directory name prefix used inside a multi-chapter
// ZIP/CBZ output ("v01", "v02", ...).
const chapterPrefix = "v"

var validBookFormats = map[string]bool{"cbz": true, "zip": true, "epub": true, "mobi": true}

// Archive owns one input comic book file: its cache directory, the
// current page index, the chapter-length partition of that index, and
// any pages that failed conversion.
type Archive struct {
	SourcePath string
	Opts       Options

	cacheDir string

	index           []*page.Page
	chapterLengths  []int
	badFiles        []*page.Page
	extractedOnce   bool
}

// New validates the source path exists and allocates this Archive's scoped
// cache directory.
func New(sourcePath string, opts Options) (*Archive, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, rcerr.InvalidPath(sourcePath)
	}
	dir, err := cachedir.New(filepath.Base(sourcePath))
	if err != nil {
		return nil, err
	}
	return &Archive{SourcePath: sourcePath, Opts: opts, cacheDir: dir}, nil
}

// CacheDir returns this Archive's private scratch directory.
func (a *Archive) CacheDir() string { return a.cacheDir }

// BadFiles returns the pages that failed conversion and were dropped, in
// the order they were encountered.
func (a *Archive) BadFiles() []*page.Page { return a.badFiles }

// Extract reads the source ZIP, optionally taking a centered even-stride
// sample instead of every entry, materializes the selected entries into
// the cache, and returns the resulting Pages sorted in natural order. It
// does not touch the Archive's memoized index; use FetchPages for that.
func (a *Archive) Extract(ctx context.Context, count int) ([]*page.Page, error) {
	r, err := zip.OpenReader(a.SourcePath)
	if err != nil {
		return nil, rcerr.InvalidArchive(a.SourcePath)
	}
	defer r.Close()

	entries := r.File
	if len(entries) == 0 {
		return nil, rcerr.InvalidArchive(a.SourcePath)
	}

	selected := entries
	if count > 0 {
		n := len(entries)
		if 2*count > n {
			return nil, rcerr.ArchiveTooSmall(a.SourcePath, count, n)
		}
		delta := n / 2
		selected = make([]*zip.File, 0, count)
		for i := delta - count; i < delta+count; i += 2 {
			selected = append(selected, entries[i])
		}
	}

	extractDir, err := os.MkdirTemp(a.cacheDir, "extract-*")
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, f := range selected {
		select {
		case <-ctx.Done():
			return nil, rcerr.WorkerPoolInterrupt()
		default:
		}
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "%s: open entry", f.Name)
		}
		_, err = cachedir.WriteEntry(extractDir, filepath.FromSlash(f.Name), rc, int64(f.UncompressedSize64))
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "%s: extract entry", f.Name)
		}
	}

	var relPaths []string
	err = filepath.WalkDir(extractDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(extractDir, path)
		if err != nil {
			return err
		}
		relPaths = append(relPaths, rel)
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	natural.Sort(relPaths)

	pages := make([]*page.Page, len(relPaths))
	for i, rel := range relPaths {
		p := page.New(filepath.Join(extractDir, rel))
		p.SetCacheRelPath(filepath.ToSlash(rel))
		pages[i] = p
	}
	return pages, nil
}

// FetchPages memoizes a full extract on first call.
func (a *Archive) FetchPages(ctx context.Context) ([]*page.Page, error) {
	if !a.extractedOnce {
		pages, err := a.Extract(ctx, 0)
		if err != nil {
			return nil, err
		}
		a.index = pages
		a.extractedOnce = true
	}
	return a.index, nil
}

// FetchChapters partitions the current page index by chapterLengths,
// defaulting to a single chapter containing every page.
func (a *Archive) FetchChapters(ctx context.Context) ([][]*page.Page, error) {
	pages, err := a.FetchPages(ctx)
	if err != nil {
		return nil, err
	}
	lengths := a.chapterLengths
	if len(lengths) == 0 {
		lengths = []int{len(pages)}
	}

	chapters := make([][]*page.Page, 0, len(lengths))
	rest := pages
	for _, n := range lengths {
		if n > len(rest) {
			n = len(rest)
		}
		chapters = append(chapters, rest[:n])
		rest = rest[n:]
	}
	return chapters, nil
}

// AddChapter appends another Archive's pages (optionally sliced by
// [start:end], either bound -1 meaning "unset") as a new chapter on a.
// Ownership of the underlying files stays with other's cache; a only
// references their paths.
func (a *Archive) AddChapter(ctx context.Context, other *Archive, start, end int) ([]*page.Page, error) {
	pages, err := other.FetchPages(ctx)
	if err != nil {
		return nil, err
	}
	chapter := pages
	if end >= 0 {
		chapter = chapter[:end]
	}
	if start >= 0 {
		chapter = chapter[start:]
	}

	// ensure chapterLengths is populated with the default before appending,
	// same as a forced fetch_chapters() call in the source.
	if len(a.chapterLengths) == 0 {
		existing, err := a.FetchPages(ctx)
		if err != nil {
			return nil, err
		}
		a.chapterLengths = []int{len(existing)}
	}

	a.chapterLengths = append(a.chapterLengths, len(chapter))
	a.index = append(a.index, chapter...)
	return a.index, nil
}

// ConvertPages runs the transform kernel over every page in the current
// index through the worker pool, using a's Options. Recoverable
// conversion failures (PageIOError, InvalidImageFormat) are dropped into
// BadFiles when Opts.IgnorePageError is set; otherwise the first one
// aborts the whole conversion.
func (a *Archive) ConvertPages(ctx context.Context) ([]*page.Page, error) {
	pages, err := a.FetchPages(ctx)
	if err != nil {
		return nil, err
	}
	topts, err := a.Opts.transformOptions()
	if err != nil {
		return nil, err
	}

	type result struct {
		page   *page.Page
		source *page.Page
		bad    bool
	}

	wpOpts := workerpool.Options{Parallelism: a.Opts.Parallelism, Multithread: false}
	if !a.Opts.Parallel {
		wpOpts.Parallelism = 1
	}

	results, err := workerpool.Map(ctx, pages, wpOpts, func(ctx context.Context, src *page.Page) (result, error) {
		if err := ctx.Err(); err != nil {
			return result{}, rcerr.WorkerPoolInterrupt()
		}
		out, convErr := transform.Run(src, topts, a.cacheDir)
		if convErr == nil {
			return result{page: out, source: src}, nil
		}
		if !isRecoverable(convErr) {
			return result{}, convErr
		}
		if !a.Opts.IgnorePageError {
			return result{}, convErr
		}
		return result{source: src, bad: true}, nil
	})
	if err != nil {
		return nil, err
	}

	var newIndex []*page.Page
	var bad []*page.Page
	for _, r := range results {
		if r.bad {
			bad = append(bad, r.source)
			continue
		}
		newIndex = append(newIndex, r.page)
	}
	a.index = newIndex
	a.badFiles = bad
	return a.index, nil
}

func isRecoverable(err error) bool {
	var rc *rcerr.Error
	if !errors.As(err, &rc) {
		return false
	}
	return rc.Code == "page_io_error" || rc.Code == "invalid_image_format"
}

// ComputeFormatSizes samples the source and delegates candidate-codec
// size estimation to the analyzer, without disturbing the Archive's main
// page index.
func (a *Archive) ComputeFormatSizes(ctx context.Context) ([]analyzer.FormatSize, error) {
	samples, err := a.Extract(ctx, a.Opts.SampleCount)
	if err != nil {
		return nil, err
	}
	return analyzer.Run(ctx, samples, a.cacheDir, analyzer.Options{
		Blacklist:   a.Opts.Blacklist(),
		Quality:     a.Opts.Quality,
		Parallelism: a.Opts.Parallelism,
	})
}

// WriteArchive validates format, deletes any pre-existing file at
// destPath, and delegates to the ZIP or EPUB writer.
func (a *Archive) WriteArchive(ctx context.Context, format, destPath string) (string, error) {
	if !validBookFormats[format] {
		return "", errors.Errorf("%q: invalid output format", format)
	}
	if format == "mobi" {
		return "", errors.New("mobi output is not implemented")
	}

	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return "", errors.WithStack(err)
		}
	}

	chapters, err := a.FetchChapters(ctx)
	if err != nil {
		return "", err
	}

	switch format {
	case "cbz", "zip":
		return archivewriter.WriteZip(destPath, chapters, archivewriter.ZipOptions{
			Compress:      a.Opts.CompressZip,
			ChapterPrefix: chapterPrefix,
			Comment:       ZIPComment,
		})
	case "epub":
		title := sourceStem(a.SourcePath)
		return archivewriter.WriteEPUB(destPath, title, chapters, archivewriter.EPUBOptions{
			RTL:     a.Opts.RTL,
			Profile: a.Opts.Profile,
		})
	default:
		return "", errors.Errorf("%q: invalid output format", format)
	}
}

// AddPage validates path opens as an image and inserts it at index
// (negative indices count from the end, like Python slicing).
func (a *Archive) AddPage(path string, index int) error {
	p := page.New(path)
	if _, err := p.Format(); err != nil {
		return err
	}
	idx := normalizeInsertIndex(index, len(a.index))
	a.index = append(a.index[:idx], append([]*page.Page{p}, a.index[idx:]...)...)
	if len(a.chapterLengths) > 0 {
		a.chapterLengths[len(a.chapterLengths)-1]++
	}
	return nil
}

// RemovePage removes the page at index (negative indices count from the
// end).
func (a *Archive) RemovePage(index int) error {
	idx := normalizeIndex(index, len(a.index))
	if idx < 0 || idx >= len(a.index) {
		return errors.Errorf("page index %d out of range", index)
	}
	a.index = append(a.index[:idx], a.index[idx+1:]...)
	if len(a.chapterLengths) > 0 {
		last := len(a.chapterLengths) - 1
		if a.chapterLengths[last] > 0 {
			a.chapterLengths[last]--
		}
	}
	return nil
}

func normalizeIndex(index, length int) int {
	if index < 0 {
		return length + index
	}
	return index
}

func normalizeInsertIndex(index, length int) int {
	idx := normalizeIndex(index, length)
	if idx < 0 {
		return 0
	}
	if idx > length {
		return length
	}
	return idx
}

// Cleanup removes this Archive's cache directory. Idempotent.
func (a *Archive) Cleanup() error {
	return errors.WithStack(os.RemoveAll(a.cacheDir))
}

// IsPreviousRepack reports whether path's ZIP comment matches the repack
// marker this tool stamps on its own output, for --noprev.
func IsPreviousRepack(path string) bool {
	r, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	defer r.Close()
	return r.Comment == ZIPComment
}
