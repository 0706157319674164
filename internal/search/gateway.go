// Package search executes keyword searches against the document backend.
package search

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/hyperjump/hondana/internal/models"
	"github.com/hyperjump/hondana/internal/query"
	"go.uber.org/zap"
)

const (
	// FragmentSize is the highlight fragment length in characters.
	FragmentSize = 150
	highlightAll = "content*"
)

// SourceFields is the _source projection of every search.
var SourceFields = []string{"title", "url", "highlight", "lang", "kwds"}

type requestBody struct {
	Size      int              `json:"size"`
	From      int              `json:"from"`
	Query     models.BoolQuery `json:"query"`
	Highlight highlightRequest `json:"highlight"`
	Source    []string         `json:"_source"`
}

type highlightRequest struct {
	Fields            map[string]struct{} `json:"fields"`
	FragmentSize      int                 `json:"fragment_size"`
	NumberOfFragments int                 `json:"number_of_fragments"`
}

// Gateway translates keyword text, sends it through a Transport and normalizes the
// answer.
type Gateway struct {
	transport Transport
	logger    *zap.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets a logger for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// NewGateway returns a gateway that uses t for every request.
func NewGateway(t Transport, opts ...Option) *Gateway {
	g := &Gateway{transport: t, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Execute runs one search for text on the given page. Failures are *Error values
// classified by the Err* sentinels.
func (g *Gateway) Execute(ctx context.Context, text string, ep models.Endpoint, params models.SearchParams) (*models.SearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, &Error{Kind: ErrClientRequest, Err: err}
	}
	req, err := BuildRequest(text, ep, params)
	if err != nil {
		return nil, transportError(err)
	}
	g.logger.Debug("search request",
		zap.String("url", req.URL()),
		zap.ByteString("body", req.Body),
		zap.Bool("authenticated", req.Authorization != ""),
	)

	resp, err := g.transport.Do(ctx, req)
	if err != nil {
		return nil, transportError(err)
	}
	if resp == nil {
		return nil, &Error{Kind: ErrUnexpectedProtocol}
	}
	if failure := classifyStatus(resp.StatusCode, resp.Body); failure != nil {
		g.logger.Debug("search failed", zap.Int("status", resp.StatusCode))
		return nil, failure
	}
	result, err := decodeResult(resp.Body, params.PageSize)
	if err != nil {
		return nil, transportError(err)
	}
	g.logger.Debug("search done", zap.Int("total", result.Total), zap.Int("hits", len(result.Hits)))
	return result, nil
}

// BuildRequest composes the backend request for text without sending it.
func BuildRequest(text string, ep models.Endpoint, params models.SearchParams) (*Request, error) {
	body, err := json.Marshal(requestBody{
		Size:  params.PageSize,
		From:  params.From(),
		Query: query.Translate(text),
		Highlight: highlightRequest{
			Fields:            map[string]struct{}{highlightAll: {}},
			FragmentSize:      FragmentSize,
			NumberOfFragments: params.HighlightFragmentCount,
		},
		Source: SourceFields,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return &Request{
		BaseURL:       ep.BaseURL,
		Index:         ep.Index,
		Authorization: BasicAuth(ep.Credentials),
		Body:          body,
	}, nil
}

// BasicAuth returns the Authorization header value for c, or "" when c is nil.
func BasicAuth(c *models.Credentials) string {
	if c == nil {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.Username+":"+c.Password))
}
