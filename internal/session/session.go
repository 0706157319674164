// Package session holds the search session state machine: the current query, page,
// result or error, and the transitions between them.
package session

import (
	"encoding/json"

	"github.com/hyperjump/hondana/internal/models"
	"github.com/hyperjump/hondana/internal/search"
)

// State is the phase of a session.
type State int

const (
	// Idle is the initial state and the state after a clear.
	Idle State = iota
	// Loading means a search is in flight.
	Loading
	// Populated holds a result with at least one match.
	Populated
	// Empty is a successful search with zero matches. It displays like Idle.
	Empty
	// Failed holds the error of the last search.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Populated:
		return "populated"
	case Empty:
		return "empty"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Session is an immutable snapshot. The machine replaces it wholesale on every
// transition; Result and Err are never both set.
type Session struct {
	QueryText string
	Page      int
	Result    *models.SearchResult
	Err       error
	State     State
	// Seq is the sequence number of the transition that produced this snapshot.
	Seq uint64
}

// Cleared reports whether the session displays as an empty list with no notice.
func (s Session) Cleared() bool {
	return s.State == Idle || s.State == Empty
}

// Total returns the match count, 0 when there is no result.
func (s Session) Total() int {
	if s.Result == nil {
		return 0
	}
	return s.Result.Total
}

// Hits returns the current page of hits, nil when there is no result.
func (s Session) Hits() []models.Hit {
	if s.Result == nil {
		return nil
	}
	return s.Result.Hits
}

// Hit returns the hit at 1-based position n on the current page.
func (s Session) Hit(n int) (models.Hit, bool) {
	hits := s.Hits()
	if n < 1 || n > len(hits) {
		return models.Hit{}, false
	}
	return hits[n-1], true
}

type errorJSON struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

type sessionJSON struct {
	Query  string               `json:"query"`
	Page   int                  `json:"page"`
	State  string               `json:"state"`
	Seq    uint64               `json:"seq"`
	Result *models.SearchResult `json:"result,omitempty"`
	Error  *errorJSON           `json:"error,omitempty"`
}

// MarshalJSON encodes the snapshot with the error flattened to kind and message.
func (s Session) MarshalJSON() ([]byte, error) {
	out := sessionJSON{
		Query:  s.QueryText,
		Page:   s.Page,
		State:  s.State.String(),
		Seq:    s.Seq,
		Result: s.Result,
	}
	if s.Err != nil {
		out.Error = &errorJSON{Kind: search.Kind(s.Err), Message: s.Err.Error()}
	}
	return json.Marshal(out)
}
