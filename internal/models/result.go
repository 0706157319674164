package models

import "fmt"

// Credentials are the basic-auth user and password for the backend.
type Credentials struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// Endpoint identifies the backend index to search. Credentials is nil when the
// backend is accessed unauthenticated.
type Endpoint struct {
	BaseURL     string       `json:"base_url"`
	Index       string       `json:"index"`
	Credentials *Credentials `json:"-"`
}

// SearchParams controls pagination and highlighting of one request.
type SearchParams struct {
	PageSize               int `json:"page_size"`
	PageIndex              int `json:"page_index"`
	HighlightFragmentCount int `json:"highlight_fragment_count"`
}

// From is the backend offset for the page: (PageIndex-1)*PageSize.
func (p SearchParams) From() int {
	return (p.PageIndex - 1) * p.PageSize
}

// Validate checks the pagination invariants.
func (p SearchParams) Validate() error {
	if p.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", p.PageSize)
	}
	if p.PageIndex < 1 {
		return fmt.Errorf("page index must be at least 1, got %d", p.PageIndex)
	}
	if p.HighlightFragmentCount < 0 {
		return fmt.Errorf("highlight fragment count must not be negative, got %d", p.HighlightFragmentCount)
	}
	return nil
}

// Hit is one normalized search hit.
type Hit struct {
	ID         string   `json:"id"`
	Score      float64  `json:"score"`
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Keywords   []string `json:"keywords"`
	Highlights []string `json:"highlights"`
}

// SearchResult is one page of hits. Total counts every match, not just this page.
type SearchResult struct {
	Total int   `json:"total"`
	Hits  []Hit `json:"hits"`
}

// PageCount returns the number of pages needed to show total matches, at least 1.
func PageCount(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// Settings is the read-only configuration snapshot a search is issued with.
type Settings struct {
	Endpoint               Endpoint `json:"endpoint"`
	PageSize               int      `json:"page_size"`
	HighlightFragmentCount int      `json:"highlight_fragment_count"`
}

// Params returns the search parameters for page under these settings.
func (s Settings) Params(page int) SearchParams {
	return SearchParams{
		PageSize:               s.PageSize,
		PageIndex:              page,
		HighlightFragmentCount: s.HighlightFragmentCount,
	}
}
