package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// wordText matches <w:t> runs in WordprocessingML, with or without attributes.
var wordText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// drawingText matches <a:t> runs in DrawingML slides.
var drawingText = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

func isDocxBody(name string) bool {
	return name == "word/document.xml"
}

func isSlide(name string) bool {
	return strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml")
}

// extractOOXML joins the text runs matched by runs in every zip part accepted
// by part. Parts are read in name order.
func extractOOXML(content []byte, kind string, part func(string) bool, runs *regexp.Regexp) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	var files []*zip.File
	for _, f := range zr.File {
		if part(f.Name) {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return "", fmt.Errorf("extract %s: no text parts", kind)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	var words []string
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract %s: open %s: %w", kind, f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("extract %s: read %s: %w", kind, f.Name, err)
		}
		for _, m := range runs.FindAllStringSubmatch(string(data), -1) {
			if s := strings.TrimSpace(m[1]); s != "" {
				words = append(words, s)
			}
		}
	}
	return strings.Join(words, " "), nil
}
