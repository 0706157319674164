// Package models defines the structured query, search parameters and result shapes
// shared by the translator, the gateway and the session.
package models

// Clause names a bucket of a boolean query.
type Clause string

const (
	// Must is the conjunctive bucket.
	Must Clause = "must"
	// Should is the disjunctive bucket.
	Should Clause = "should"
)

// MatchFields is the fixed set of fields every phrase term is matched against.
var MatchFields = []string{"content", "content.ja", "title"}

// BoolQuery is the root structured query sent to the backend.
type BoolQuery struct {
	Bool BoolClause `json:"bool"`
}

// BoolClause holds the must and should buckets. The translator never nests clauses,
// but the wire shape allows it so the type mirrors the backend schema.
type BoolClause struct {
	Must   []QueryNode `json:"must"`
	Should []QueryNode `json:"should"`
}

// QueryNode is either a phrase multi_match or a nested bool query.
// Exactly one field is set.
type QueryNode struct {
	MultiMatch *MultiMatch `json:"multi_match,omitempty"`
	Bool       *BoolClause `json:"bool,omitempty"`
}

// MultiMatch is a phrase match of Query over Fields.
type MultiMatch struct {
	Type   string   `json:"type"`
	Query  string   `json:"query"`
	Fields []string `json:"fields"`
}

// NewBoolQuery returns a query with two empty, non-nil buckets so it encodes as
// {"bool":{"must":[],"should":[]}}.
func NewBoolQuery() BoolQuery {
	return BoolQuery{Bool: BoolClause{Must: []QueryNode{}, Should: []QueryNode{}}}
}

// PhraseTerm returns a phrase multi_match node for term over MatchFields.
func PhraseTerm(term string) QueryNode {
	fields := make([]string, len(MatchFields))
	copy(fields, MatchFields)
	return QueryNode{MultiMatch: &MultiMatch{Type: "phrase", Query: term, Fields: fields}}
}

// Add appends node to the given clause bucket.
func (q *BoolQuery) Add(clause Clause, node QueryNode) {
	if clause == Should {
		q.Bool.Should = append(q.Bool.Should, node)
		return
	}
	q.Bool.Must = append(q.Bool.Must, node)
}

// Terms returns the phrase terms of a bucket in order. Nested clauses are skipped.
func (q BoolQuery) Terms(clause Clause) []string {
	nodes := q.Bool.Must
	if clause == Should {
		nodes = q.Bool.Should
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.MultiMatch != nil {
			out = append(out, n.MultiMatch.Query)
		}
	}
	return out
}
