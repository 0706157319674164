// Package highlight splits backend highlight fragments into plain and
// emphasized segments.
package highlight

import "strings"

const (
	openTag  = "<em>"
	closeTag = "</em>"
)

// Segment is a run of fragment text.
type Segment struct {
	Text     string
	Emphasis bool
}

// Parse splits fragment at <em>…</em> markers. An unclosed <em> emphasizes the
// rest of the fragment; a stray </em> is dropped. Empty segments are omitted.
func Parse(fragment string) []Segment {
	var segs []Segment
	emphasis := false
	for fragment != "" {
		tag := openTag
		if emphasis {
			tag = closeTag
		}
		i := strings.Index(fragment, tag)
		text := fragment
		if i >= 0 {
			text = fragment[:i]
			fragment = fragment[i+len(tag):]
		} else {
			fragment = ""
		}
		if !emphasis {
			text = strings.ReplaceAll(text, closeTag, "")
		}
		if text != "" {
			segs = append(segs, Segment{Text: text, Emphasis: emphasis})
		}
		if i >= 0 {
			emphasis = !emphasis
		}
	}
	return segs
}

// Plain returns fragment without emphasis markers.
func Plain(fragment string) string {
	var b strings.Builder
	for _, s := range Parse(fragment) {
		b.WriteString(s.Text)
	}
	return b.String()
}
