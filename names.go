package lzc

import (
	"strings"

	"github.com/creachadair/mds/mapset"
)

// MaxNameLen is the maximum length of any dataset, snapshot, or
// bookmark name.
const MaxNameLen = 255

// namePunct is the punctuation allowed in name components, in
// addition to ASCII letters and digits.
var namePunct = mapset.New('-', '_', '.', ':', ' ')

func validNameRune(r rune) bool {
	switch {
	case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		return true
	}
	return namePunct.Has(r)
}

func validComponent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !validNameRune(r) {
			return false
		}
	}
	return true
}

// ValidFilesystemName reports whether name is a syntactically valid
// filesystem or volume name: one or more non-empty /-separated
// components.
func ValidFilesystemName(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range strings.Split(name, "/") {
		if !validComponent(c) {
			return false
		}
	}
	return true
}

// ValidSnapshotName reports whether name is a syntactically valid
// snapshot name (filesystem@component).
func ValidSnapshotName(name string) bool {
	fs, snap, ok := strings.Cut(name, "@")
	return ok && !strings.Contains(snap, "@") &&
		ValidFilesystemName(fs) && validComponent(snap)
}

// ValidBookmarkName reports whether name is a syntactically valid
// bookmark name (filesystem#component).
func ValidBookmarkName(name string) bool {
	fs, bm, ok := strings.Cut(name, "#")
	return ok && !strings.Contains(bm, "#") &&
		ValidFilesystemName(fs) && validComponent(bm)
}

// PoolName returns the leading pool segment of name: everything up
// to the first '/', '@', or '#'.
func PoolName(name string) string {
	if i := strings.IndexAny(name, "/@#"); i >= 0 {
		return name[:i]
	}
	return name
}

// FilesystemName returns the filesystem part of a snapshot or
// bookmark name: everything up to the first '@' or '#'.
func FilesystemName(name string) string {
	if i := strings.IndexAny(name, "@#"); i >= 0 {
		return name[:i]
	}
	return name
}
