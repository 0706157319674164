// Package cli renders search sessions, history and settings for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/hyperjump/hondana/internal/highlight"
	"github.com/hyperjump/hondana/internal/location"
	"github.com/hyperjump/hondana/internal/models"
	"github.com/hyperjump/hondana/internal/search"
	"github.com/hyperjump/hondana/internal/session"
	"github.com/hyperjump/hondana/pkg/utils"
)

// OutputFormat is the format for session output.
type OutputFormat string

const (
	// OutputText is human-readable cards (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one tab-separated line per hit.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is the session snapshot as JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
}

const maxTitleWidth = 80

// Renderer writes sessions. Expanded, when set, reports whether the hit with
// the given ID shows its highlight fragments; nil expands every hit.
type Renderer struct {
	PageSize int
	Expanded func(id string) bool

	title    *color.Color
	chip     *color.Color
	emphasis *color.Color
	faint    *color.Color
	failure  *color.Color
}

// NewRenderer returns a renderer. useColor forces ANSI styling on or off
// regardless of the terminal.
func NewRenderer(pageSize int, useColor bool) *Renderer {
	r := &Renderer{
		PageSize: pageSize,
		title:    color.New(color.Bold),
		chip:     color.New(color.FgCyan),
		emphasis: color.New(color.Bold, color.Underline),
		faint:    color.New(color.Faint),
		failure:  color.New(color.FgRed, color.Bold),
	}
	for _, c := range []*color.Color{r.title, r.chip, r.emphasis, r.faint, r.failure} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Write renders s to w in format.
func (r *Renderer) Write(w io.Writer, s session.Session, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case OutputCompact:
		r.writeCompact(w, s)
	default:
		r.writeText(w, s)
	}
	return nil
}

func (r *Renderer) writeText(w io.Writer, s session.Session) {
	switch s.State {
	case session.Loading:
		fmt.Fprintln(w, r.faint.Sprint("Searching..."))
		return
	case session.Failed:
		fmt.Fprintln(w, r.ErrorNotice(s.Err))
		return
	case session.Populated:
	default:
		return
	}

	fmt.Fprintf(w, "%d matches  (page %d of %d)\n", s.Total(), s.Page, models.PageCount(s.Total(), r.PageSize))
	for i, hit := range s.Hits() {
		fmt.Fprintln(w, r.faint.Sprint(strings.Repeat("─", 60)))
		fmt.Fprintf(w, "[%d] %s\n", i+1, r.title.Sprint(utils.Truncate(hit.Title, maxTitleWidth)))
		if loc := location.Parse(hit.URL); loc.Path != "" {
			fmt.Fprintf(w, "    %s\n", loc.Path)
		}
		if len(hit.Keywords) > 0 {
			chips := make([]string, len(hit.Keywords))
			for j, kw := range hit.Keywords {
				chips[j] = fmt.Sprintf("%d:%s", j+1, r.chip.Sprint(kw))
			}
			fmt.Fprintf(w, "    %s\n", strings.Join(chips, "  "))
		}
		if r.Expanded != nil && !r.Expanded(hit.ID) {
			continue
		}
		for _, frag := range hit.Highlights {
			fmt.Fprintf(w, "    > %s\n", r.Fragment(utils.CollapseSpace(frag)))
		}
	}
}

func (r *Renderer) writeCompact(w io.Writer, s session.Session) {
	switch s.State {
	case session.Failed:
		fmt.Fprintf(w, "error\t%s\t%s\n", search.Kind(s.Err), s.Err)
		return
	case session.Populated:
	default:
		return
	}
	fmt.Fprintf(w, "total\t%d\tpage\t%d/%d\n", s.Total(), s.Page, models.PageCount(s.Total(), r.PageSize))
	for i, hit := range s.Hits() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, hit.Title, location.Parse(hit.URL).Path, strings.Join(hit.Keywords, ","))
	}
}

// Fragment renders a highlight fragment with its <em> spans emphasized.
func (r *Renderer) Fragment(fragment string) string {
	var b strings.Builder
	for _, seg := range highlight.Parse(fragment) {
		if seg.Emphasis {
			b.WriteString(r.emphasis.Sprint(seg.Text))
		} else {
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

// ErrorNotice is the blocking notice shown for a failed session.
func (r *Renderer) ErrorNotice(err error) string {
	if err == nil {
		return ""
	}
	return r.failure.Sprint("Error: ") + err.Error()
}
