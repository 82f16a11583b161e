package archivewriter

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/recbz-go/recbz/pkg/deviceprofile"
	"github.com/recbz-go/recbz/pkg/page"
)

// EPUBOptions configures WriteEPUB.
type EPUBOptions struct {
	RTL     bool
	Profile *deviceprofile.Profile
}

type epubPage struct {
	name      string
	width     int
	height    int
	mediaType string
	chapter   int // 0-indexed chapter this page belongs to, for the TOC
}

// WriteEPUB assembles chapters into a single fixed-layout EPUB3 file:
// cover set to the first page, one XHTML wrapper per image, a TOC
// listing the first page of every chapter, and reading direction and
// device-profile metadata honored when configured. destPath is written
// atomically via a .tmp file renamed into place on success.
func WriteEPUB(destPath, title string, chapters [][]*page.Page, opts EPUBOptions) (string, error) {
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

	mimeWriter, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return "", errors.WithStack(err)
	}
	if _, err := mimeWriter.Write([]byte("application/epub+zip")); err != nil {
		return "", errors.WithStack(err)
	}

	containerXML := `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`
	if err := writeZipFile(zw, "META-INF/container.xml", []byte(containerXML)); err != nil {
		return "", err
	}

	var pages []epubPage
	for ci, chapter := range chapters {
		for _, p := range chapter {
			w, h, err := p.Size()
			if err != nil {
				return "", errors.Wrapf(err, "%s: page size", p.Path)
			}
			pages = append(pages, epubPage{
				name:      fmt.Sprintf("page%04d%s", len(pages)+1, formatExt(p)),
				width:     w,
				height:    h,
				mediaType: mediaType(p),
				chapter:   ci,
			})
		}
	}
	if len(pages) == 0 {
		return "", errors.New("epub writer: no pages to write")
	}

	bookUUID := uuid.NewString()

	if err := writeZipFile(zw, "OEBPS/content.opf", generateOPF(title, pages, bookUUID, opts)); err != nil {
		return "", err
	}
	if err := writeZipFile(zw, "OEBPS/toc.ncx", generateNCX(title, pages, chapters, bookUUID)); err != nil {
		return "", err
	}
	if err := writeZipFile(zw, "OEBPS/nav.xhtml", generateNav(title, pages, chapters)); err != nil {
		return "", err
	}
	if err := writeZipFile(zw, "OEBPS/styles.css", generateEPUBCSS()); err != nil {
		return "", err
	}

	flat := flattenPages(chapters)
	for i, ep := range pages {
		xhtml := generatePageXHTML(ep, i+1, opts)
		if err := writeZipFile(zw, fmt.Sprintf("OEBPS/%s.xhtml", pageStem(ep.name)), xhtml); err != nil {
			return "", err
		}
		if err := copyPageAsset(zw, "OEBPS/images/"+ep.name, flat[i].Path); err != nil {
			return "", errors.Wrapf(err, "%s: write page image", ep.name)
		}
	}

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

func flattenPages(chapters [][]*page.Page) []*page.Page {
	var out []*page.Page
	for _, c := range chapters {
		out = append(out, c...)
	}
	return out
}

func pageStem(name string) string {
	if i := len(name) - len(extOf(name)); i > 0 {
		return name[:i]
	}
	return name
}

func extOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i:]
		}
	}
	return ""
}

func formatExt(p *page.Page) string {
	f, err := p.Format()
	if err != nil || len(f.Extensions) == 0 {
		return ".jpg"
	}
	return f.Extensions[0]
}

func mediaType(p *page.Page) string {
	f, err := p.Format()
	if err != nil {
		return "image/jpeg"
	}
	switch f.Name {
	case "png":
		return "image/png"
	case "webp", "webpll":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = w.Write(data)
	return errors.WithStack(err)
}

func copyPageAsset(zw *zip.Writer, name, srcPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return errors.WithStack(err)
	}
	return writeZipFile(zw, name, data)
}

func generateOPF(title string, pages []epubPage, bookUUID string, opts EPUBOptions) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="uid">urn:uuid:`)
	buf.WriteString(bookUUID)
	buf.WriteString(`</dc:identifier>
    <dc:title>`)
	buf.WriteString(html.EscapeString(title))
	buf.WriteString(`</dc:title>
    <dc:language>en</dc:language>
    <meta property="rendition:layout">pre-paginated</meta>
`)
	if opts.RTL {
		buf.WriteString("    <meta property=\"rendition:spread\">landscape</meta>\n")
	}
	if opts.Profile != nil {
		buf.WriteString(fmt.Sprintf("    <meta name=\"recbz:device-profile\" content=\"%s\"/>\n", html.EscapeString(opts.Profile.Nickname)))
	}
	buf.WriteString("  </metadata>\n  <manifest>\n")
	buf.WriteString(`    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="nav" href="nav.xhtml" properties="nav" media-type="application/xhtml+xml"/>
    <item id="css" href="styles.css" media-type="text/css"/>
`)
	for i, p := range pages {
		buf.WriteString(fmt.Sprintf("    <item id=\"page%d\" href=\"%s.xhtml\" media-type=\"application/xhtml+xml\"/>\n", i+1, pageStem(p.name)))
		buf.WriteString(fmt.Sprintf("    <item id=\"img%d\" href=\"images/%s\" media-type=\"%s\"", i+1, p.name, p.mediaType))
		if i == 0 {
			buf.WriteString(" properties=\"cover-image\"")
		}
		buf.WriteString("/>\n")
	}
	buf.WriteString("  </manifest>\n  <spine")
	if opts.RTL {
		buf.WriteString(" page-progression-direction=\"rtl\"")
	}
	buf.WriteString(">\n")
	for i := range pages {
		buf.WriteString(fmt.Sprintf("    <itemref idref=\"page%d\"/>\n", i+1))
	}
	buf.WriteString("  </spine>\n</package>\n")
	return buf.Bytes()
}

func generateNCX(title string, pages []epubPage, chapters [][]*page.Page, bookUUID string) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
    <meta name="dtb:uid" content="urn:uuid:`)
	buf.WriteString(bookUUID)
	buf.WriteString(`"/>
    <meta name="dtb:depth" content="1"/>
    <meta name="dtb:totalPageCount" content="`)
	buf.WriteString(strconv.Itoa(len(pages)))
	buf.WriteString(`"/>
  </head>
  <docTitle><text>`)
	buf.WriteString(html.EscapeString(title))
	buf.WriteString(`</text></docTitle>
  <navMap>
`)
	for ci, firstPage := range firstPageOfEachChapter(pages, chapters) {
		buf.WriteString(fmt.Sprintf(`    <navPoint id="navpoint%d" playOrder="%d">
      <navLabel><text>Chapter %d</text></navLabel>
      <content src="%s.xhtml"/>
    </navPoint>
`, ci+1, ci+1, ci+1, pageStem(pages[firstPage].name)))
	}
	buf.WriteString("  </navMap>\n</ncx>\n")
	return buf.Bytes()
}

func generateNav(title string, pages []epubPage, chapters [][]*page.Page) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>`)
	buf.WriteString(html.EscapeString(title))
	buf.WriteString(`</title><meta charset="utf-8"/></head>
<body>
<nav epub:type="toc" id="toc"><ol>
`)
	for ci, firstPage := range firstPageOfEachChapter(pages, chapters) {
		buf.WriteString(fmt.Sprintf(`<li><a href="%s.xhtml">Chapter %d</a></li>
`, pageStem(pages[firstPage].name), ci+1))
	}
	buf.WriteString(`</ol></nav>
<nav epub:type="page-list"><ol>
`)
	for i, p := range pages {
		buf.WriteString(fmt.Sprintf(`<li><a href="%s.xhtml">%d</a></li>
`, pageStem(p.name), i+1))
	}
	buf.WriteString("</ol></nav>\n</body>\n</html>\n")
	return buf.Bytes()
}

// firstPageOfEachChapter returns, for every chapter, the index into pages
// of its first page.
func firstPageOfEachChapter(pages []epubPage, chapters [][]*page.Page) []int {
	var firsts []int
	seen := -1
	for i, p := range pages {
		if p.chapter != seen {
			firsts = append(firsts, i)
			seen = p.chapter
		}
	}
	return firsts
}

func generatePageXHTML(p epubPage, pageNum int, opts EPUBOptions) []byte {
	var buf bytes.Buffer
	w, h := strconv.Itoa(p.width), strconv.Itoa(p.height)
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops"`)
	if opts.RTL {
		buf.WriteString(` dir="rtl"`)
	}
	buf.WriteString(`>
<head>
<title>Page `)
	buf.WriteString(strconv.Itoa(pageNum))
	buf.WriteString(`</title>
<link href="styles.css" type="text/css" rel="stylesheet"/>
<meta name="viewport" content="width=`)
	buf.WriteString(w)
	buf.WriteString(`, height=`)
	buf.WriteString(h)
	buf.WriteString(`"/>
</head>
<body>
<div class="page">
<img width="`)
	buf.WriteString(w)
	buf.WriteString(`" height="`)
	buf.WriteString(h)
	buf.WriteString(`" src="images/`)
	buf.WriteString(p.name)
	buf.WriteString(`"/>
</div>
</body>
</html>
`)
	return buf.Bytes()
}

func generateEPUBCSS() []byte {
	return []byte(`@page { margin: 0; }
body { display: block; margin: 0; padding: 0; }
.page { text-align: center; }
img { max-width: 100%; max-height: 100%; }
`)
}
