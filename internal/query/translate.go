// Package query translates free-text keyword input into the backend's boolean query.
//
// The grammar is a flat sequence of phrase terms separated by optional AND/OR
// operators. There is no grouping and no precedence: each operator only switches
// which bucket (must or should) receives the following terms.
package query

import (
	"strings"

	"github.com/hyperjump/hondana/internal/models"
)

const (
	opAnd = "AND"
	opOr  = "OR"
)

// Translate converts text into a two-bucket bool query. It never fails; blank input
// yields a query with both buckets empty, so callers must intercept blank text
// themselves.
//
// The starting bucket is chosen by looking at the second token only: "a OR b" puts
// both a and b in should, while a single token always starts in must.
func Translate(text string) models.BoolQuery {
	tokens := Tokenize(text)
	q := models.NewBoolQuery()

	active := models.Must
	if len(tokens) > 1 && strings.EqualFold(tokens[1], opOr) {
		active = models.Should
	}
	for _, tok := range tokens {
		switch {
		case strings.EqualFold(tok, opAnd):
			active = models.Must
		case strings.EqualFold(tok, opOr):
			active = models.Should
		default:
			q.Add(active, models.PhraseTerm(tok))
		}
	}
	return q
}

// Tokenize normalizes text and splits it into tokens. Whitespace runs collapse to
// one separator, and a single leading "AND " and then a single leading "OR " are
// dropped (case-insensitive).
func Tokenize(text string) []string {
	s := strings.Join(strings.Fields(text), " ")
	s = trimOperatorPrefix(s, opAnd)
	s = trimOperatorPrefix(s, opOr)
	return strings.Fields(s)
}

func trimOperatorPrefix(s, op string) string {
	prefix := op + " "
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):]
	}
	return s
}

// Refine appends term to text as a conjunctive filter. An empty text yields term alone.
func Refine(text, term string) string {
	if text == "" {
		return term
	}
	return text + " " + opAnd + " " + term
}
