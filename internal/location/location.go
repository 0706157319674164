// Package location turns the URL stored with a document into something a
// person can open or paste.
package location

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// Copy messages shown after a location was put on the clipboard.
const (
	PathCopied = "file path copied"
	NameCopied = "file name copied"
)

// Location is the decoded form of a hit URL.
type Location struct {
	URL  string
	Path string
	Name string
}

// Parse decodes raw. file:// URLs become filesystem paths; other URLs are
// percent-decoded as a whole. Name is the last path segment.
func Parse(raw string) Location {
	loc := Location{URL: raw, Path: raw}
	if u, err := url.Parse(raw); err == nil && u.Scheme == "file" {
		p := u.Path
		if runtime.GOOS == "windows" {
			p = strings.TrimPrefix(p, "/")
		}
		loc.Path = filepath.FromSlash(p)
	} else if decoded, err := url.PathUnescape(raw); err == nil {
		loc.Path = decoded
	}
	name := path.Base(filepath.ToSlash(loc.Path))
	if name != "." && name != "/" {
		loc.Name = name
	}
	return loc
}

// IsFile reports whether the location came from a file:// URL.
func (l Location) IsFile() bool {
	return strings.HasPrefix(strings.ToLower(l.URL), "file:")
}

// Exists reports whether the location is a file:// path present on this machine.
func (l Location) Exists() bool {
	if !l.IsFile() || l.Path == "" {
		return false
	}
	_, err := os.Stat(l.Path)
	return err == nil
}

// CopyTarget returns the text to copy and the message to show. The full path
// is copied when it exists locally, otherwise only the file name, since the
// document may live on another machine's shelf.
func (l Location) CopyTarget(exists func(Location) bool) (text, message string) {
	if exists == nil {
		exists = Location.Exists
	}
	if exists(l) {
		return l.Path, PathCopied
	}
	return l.Name, NameCopied
}
