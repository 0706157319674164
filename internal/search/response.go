package search

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperjump/hondana/internal/models"
)

const (
	highlightFieldJa = "content.ja"
	highlightField   = "content"
)

// flexString accepts a JSON string or any other scalar, keeping the scalar's exact
// text (so an _id of 0042 or 1.50 is not reformatted). null decodes to "".
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(b)
	}
	return nil
}

// rawTotal accepts both {"value": n, "relation": ...} and a bare number.
type rawTotal struct {
	Value int
}

func (t *rawTotal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			Value int `json:"value"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		t.Value = obj.Value
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		t.Value = 0
		return nil
	}
	return json.Unmarshal(b, &t.Value)
}

type rawResponse struct {
	Hits *struct {
		Total rawTotal `json:"total"`
		Hits  []rawHit `json:"hits"`
	} `json:"hits"`
}

type rawHit struct {
	ID        flexString          `json:"_id"`
	Score     *float64            `json:"_score"`
	Source    rawSource           `json:"_source"`
	Highlight map[string][]string `json:"highlight"`
}

type rawSource struct {
	URL      flexString      `json:"url"`
	Title    flexString      `json:"title"`
	Keywords json.RawMessage `json:"kwds"`
}

var errNoHits = errors.New("response has no hits section")

// decodeResult maps a successful backend body into a SearchResult holding at most
// pageSize hits.
func decodeResult(body []byte, pageSize int) (*models.SearchResult, error) {
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if raw.Hits == nil {
		return nil, errNoHits
	}
	hits := raw.Hits.Hits
	if pageSize > 0 && len(hits) > pageSize {
		hits = hits[:pageSize]
	}
	result := &models.SearchResult{
		Total: raw.Hits.Total.Value,
		Hits:  make([]models.Hit, 0, len(hits)),
	}
	for _, h := range hits {
		keywords, err := decodeKeywords(h.Source.Keywords)
		if err != nil {
			return nil, fmt.Errorf("decode kwds of %s: %w", h.ID, err)
		}
		hit := models.Hit{
			ID:         string(h.ID),
			URL:        string(h.Source.URL),
			Title:      string(h.Source.Title),
			Keywords:   keywords,
			Highlights: pickHighlights(h.Highlight),
		}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}

// decodeKeywords normalizes the kwds source field. Absent, null and "" give an empty
// list; a list keeps its order; a non-empty bare string is a single keyword.
func decodeKeywords(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}, nil
	}
	switch raw[0] {
	case '[':
		var items []flexString
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = string(it)
		}
		return out, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return []string{}, nil
		}
		return []string{s}, nil
	}
	return []string{}, nil
}

// pickHighlights prefers the Japanese content field, then the generic one.
func pickHighlights(h map[string][]string) []string {
	for _, field := range []string{highlightFieldJa, highlightField} {
		if frags, ok := h[field]; ok && frags != nil {
			out := make([]string, len(frags))
			copy(out, frags)
			return out
		}
	}
	return []string{}
}
