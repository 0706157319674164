// Package fileid derives the backend document ID and URL of an indexed file.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path/filepath"
)

// DocID returns the hex sha256 of the cleaned path. Same path always yields the
// same ID, so re-indexing a file hits the existing document.
func DocID(path string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return hex.EncodeToString(hash[:])
}

// FileURL returns the percent-encoded file:// URI of an absolute path.
func FileURL(absolutePath string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Clean(absolutePath))}
	return u.String()
}
