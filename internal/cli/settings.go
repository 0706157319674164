package cli

import (
	"fmt"
	"io"

	"github.com/hyperjump/hondana/internal/models"
)

// WriteSettings prints the settings a search is issued with. The password is masked.
func WriteSettings(w io.Writer, s models.Settings) {
	fmt.Fprintf(w, "backend.url             %s\n", s.Endpoint.BaseURL)
	fmt.Fprintf(w, "backend.index           %s\n", s.Endpoint.Index)
	if c := s.Endpoint.Credentials; c != nil {
		fmt.Fprintf(w, "backend.username        %s\n", c.Username)
		fmt.Fprintf(w, "backend.password        %s\n", mask(c.Password))
	} else {
		fmt.Fprintf(w, "backend.auth            off\n")
	}
	fmt.Fprintf(w, "display.page_size       %d\n", s.PageSize)
	fmt.Fprintf(w, "display.highlight_size  %d\n", s.HighlightFragmentCount)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
