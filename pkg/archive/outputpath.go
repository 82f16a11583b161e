package archive

import (
	"path/filepath"
	"strings"
)

// ZIPComment is the fixed archive comment recbz stamps on every output it
// writes, and the marker --noprev checks an input against to skip
// already-repacked files.
const ZIPComment = "repacked with reCBZ"

const kepubSuffix = ".kepub.epub"

// sourceStem derives the naming stem used to build an output path,
// special-casing a double-suffixed Kobo EPUB (foo.kepub.epub) so its two
// trailing extensions are stripped together rather than leaving a
// dangling ".kepub" behind.
func sourceStem(path string) string {
	base := filepath.Base(path)
	if strings.HasSuffix(strings.ToLower(base), kepubSuffix) {
		return base[:len(base)-len(kepubSuffix)]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ResolveOutputPath implements the output file naming policy: overwrite
// mode writes next to the source under the source's own stem (the
// caller/WriteArchive still deletes whatever is there first); otherwise
// the file is written to the current working directory with a " [reCBZ]"
// tag. deviceExt, when non-empty (e.g. ".kepub.epub" from a Kobo
// profile), replaces the ".epub" extension of epub output; every other
// format keeps its plain "."+format extension.
func ResolveOutputPath(sourcePath, format string, overwrite bool, deviceExt string) string {
	stem := sourceStem(sourcePath)
	ext := "." + format
	if deviceExt != "" && format == "epub" {
		ext = deviceExt
	}

	if overwrite {
		return filepath.Join(filepath.Dir(sourcePath), stem+ext)
	}
	return stem + " [reCBZ]" + ext
}
