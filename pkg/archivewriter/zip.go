// Package archivewriter assembles a converted page index back into an
// output archive: a flat or chapter-prefixed ZIP/CBZ, or a fixed-layout
// EPUB package.
package archivewriter

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/recbz-go/recbz/pkg/page"
)

// ZipOptions configures WriteZip.
type ZipOptions struct {
	// Compress selects DEFLATE level 9 over STORED. STORED is the default
	// since pages are already compressed images.
	Compress bool
	// ChapterPrefix is the directory name prefix used ahead of each
	// chapter's pages when there's more than one chapter ("v" -> "v01/").
	ChapterPrefix string
	// Comment is stamped as the ZIP's archive comment.
	Comment string
}

// WriteZip writes chapters to destPath as a ZIP/CBZ, atomically (via a
// .tmp file renamed into place on success). Page ordering within the
// archive follows chapters in order, pages within each chapter in order.
// A multi-chapter archive prefixes every entry with a zero-padded chapter
// directory; a single chapter writes entries flat.
func WriteZip(destPath string, chapters [][]*page.Page, opts ZipOptions) (string, error) {
	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer func() {
		out.Close()
		os.Remove(tmpPath)
	}()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	method := zip.Store
	if opts.Compress {
		method = zip.Deflate
	}

	width := len(strconv.Itoa(len(chapters)))
	multi := len(chapters) > 1

	for ci, pages := range chapters {
		for _, p := range pages {
			name := p.ArchiveName()
			if multi {
				name = fmt.Sprintf("%s%0*d/%s", opts.ChapterPrefix, width, ci+1, p.ArchiveName())
			}
			if err := copyPageInto(zw, name, p.Path, method); err != nil {
				return "", errors.Wrapf(err, "%s: write entry", name)
			}
		}
	}

	zw.SetComment(opts.Comment)
	if err := zw.Close(); err != nil {
		return "", errors.WithStack(err)
	}
	if err := out.Close(); err != nil {
		return "", errors.WithStack(err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", errors.WithStack(err)
	}
	return destPath, nil
}

func copyPageInto(zw *zip.Writer, name, srcPath string, method uint16) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = io.Copy(w, src)
	return errors.WithStack(err)
}
