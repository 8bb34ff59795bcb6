package utils

import (
	"regexp"
	"strings"
	"time"
)

var (
	// Characters invalid in filenames on most filesystems
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	// Whitespace characters to normalize
	whitespaceChars = regexp.MustCompile(`[\r\n\t]`)
	// Multiple spaces to collapse
	multipleSpaces = regexp.MustCompile(`\s+`)
)

const maxFilenameLength = 200

// SanitizeFilename removes characters that are invalid in filenames or awkward
// in a Content-Disposition header.
func SanitizeFilename(filename string) string {
	filename = invalidFilenameChars.ReplaceAllString(filename, "")
	filename = whitespaceChars.ReplaceAllString(filename, " ")
	filename = multipleSpaces.ReplaceAllString(filename, " ")
	filename = strings.TrimSpace(filename)
	filename = strings.ReplaceAll(filename, ";", "")

	// Leave room for an extension
	if len(filename) > maxFilenameLength {
		filename = strings.TrimSpace(filename[:maxFilenameLength])
	}

	if filename == "" {
		filename = "Untitled"
	}

	return filename
}

// TimestampedFilename builds "<label>-<UTC timestamp><ext>", e.g.
// "bookshelf-export-20240501T080000Z.json".
func TimestampedFilename(label string, at time.Time, ext string) string {
	label = strings.ReplaceAll(SanitizeFilename(label), " ", "-")
	return label + "-" + at.UTC().Format("20060102T150405Z") + ext
}
