package sanitize

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// MaxFilenameLength is the maximum allowed length for the filename base.
	MaxFilenameLength = 120
	// DefaultExt is the default extension used when none is provided.
	DefaultExt = "mp4"
	// DefaultName is the replacement name when the title is empty.
	DefaultName = "video"
	// DefaultExportName is the links file written by the CLI export option.
	DefaultExportName = "links.txt"
)

var (
	unsafeChars = regexp.MustCompile(`[\\/:*?"<>|]+`)
	exportName  = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+\.\S*$`)
)

// ToSafeFilename builds a cross-platform safe filename from title and extension (without dot in ext).
func ToSafeFilename(title, ext string) string {
	name := strings.TrimSpace(title)
	if name == "" {
		name = DefaultName
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	if len(name) > MaxFilenameLength {
		name = name[:MaxFilenameLength]
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = DefaultExt
	}
	return filepath.Clean(name + "." + ext)
}

// FilenameFromURL derives a safe filename from the last path segment of a
// media URL, falling back to ext when the segment has none.
func FilenameFromURL(rawURL, ext string) string {
	var base string
	if u, err := url.Parse(rawURL); err == nil {
		base = path.Base(u.Path)
	}
	if base == "/" || base == "." {
		base = ""
	}
	if e := filepath.Ext(base); len(e) > 1 {
		return ToSafeFilename(strings.TrimSuffix(base, e), e)
	}
	return ToSafeFilename(base, ext)
}

// IsValidExportName reports whether name is a bare file name (no directory
// part) made of letters, digits, underscores, hyphens and dots, with an extension.
func IsValidExportName(name string) bool {
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return exportName.MatchString(name)
}
