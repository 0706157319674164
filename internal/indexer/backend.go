package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/hyperjump/hondana/internal/models"
)

// ErrDocumentExists is returned by Create when the document ID is already indexed.
var ErrDocumentExists = errors.New("document already exists")

// Keyword extraction limits passed to the termvectors filter.
const (
	maxKeywordTerms    = 20
	minKeywordLength   = 4
	minKeywordTermFreq = 50
)

// Backend performs the index-side Elasticsearch calls of the indexer.
type Backend struct {
	client   esapi.Transport
	index    string
	analyzer string
}

// NewBackend returns a backend writing to index through client. analyzer is the
// Elasticsearch analyzer used for the content.ja subfield.
func NewBackend(client esapi.Transport, index, analyzer string) *Backend {
	return &Backend{client: client, index: index, analyzer: analyzer}
}

// NewClient builds an Elasticsearch client for baseURL. creds may be nil.
func NewClient(baseURL string, creds *models.Credentials) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{Addresses: []string{strings.TrimRight(baseURL, "/")}}
	if creds != nil {
		cfg.Username = creds.Username
		cfg.Password = creds.Password
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

// Mapping returns the index creation body.
func (b *Backend) Mapping() map[string]any {
	text := func(extra map[string]any) map[string]any {
		m := map[string]any{"type": "text", "term_vector": "with_positions_offsets"}
		for k, v := range extra {
			m[k] = v
		}
		return m
	}
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"doc_id": map[string]any{"type": "keyword"},
				"url":    map[string]any{"type": "keyword"},
				"title": map[string]any{
					"type":   "text",
					"fields": map[string]any{"keyword": map[string]any{"type": "keyword"}},
				},
				"content": text(map[string]any{
					"fields": map[string]any{"ja": text(map[string]any{"analyzer": b.analyzer})},
				}),
				"lang":           map[string]any{"type": "keyword"},
				"kwds":           map[string]any{"type": "keyword"},
				"index_modified": map[string]any{"type": "date"},
				"file_modified":  map[string]any{"type": "date"},
			},
		},
	}
}

// EnsureIndex creates the index unless it already exists. It reports whether
// the index was created.
func (b *Backend) EnsureIndex(ctx context.Context) (bool, error) {
	res, err := esapi.IndicesExistsRequest{Index: []string{b.index}}.Do(ctx, b.client)
	if err != nil {
		return false, fmt.Errorf("check index: %w", err)
	}
	drain(res)
	switch res.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusNotFound:
	default:
		return false, fmt.Errorf("check index: unexpected status %d", res.StatusCode)
	}

	body, err := json.Marshal(b.Mapping())
	if err != nil {
		return false, fmt.Errorf("marshal mapping: %w", err)
	}
	res, err = esapi.IndicesCreateRequest{Index: b.index, Body: bytes.NewReader(body)}.Do(ctx, b.client)
	if err != nil {
		return false, fmt.Errorf("create index: %w", err)
	}
	if err := checkResponse("create index", res); err != nil {
		return false, err
	}
	return true, nil
}

// Create stores doc under id. It fails with ErrDocumentExists on a conflict.
func (b *Backend) Create(ctx context.Context, id string, doc *Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	res, err := esapi.CreateRequest{Index: b.index, DocumentID: id, Body: bytes.NewReader(body)}.Do(ctx, b.client)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	if res.StatusCode == http.StatusConflict {
		drain(res)
		return ErrDocumentExists
	}
	return checkResponse("create document", res)
}

type termVectorsResponse struct {
	TermVectors map[string]struct {
		Terms map[string]struct {
			Score float64 `json:"score"`
		} `json:"terms"`
	} `json:"term_vectors"`
}

// Keywords returns the most significant terms of field in document id,
// highest score first.
func (b *Backend) Keywords(ctx context.Context, id, field string) ([]string, error) {
	body, err := json.Marshal(map[string]any{
		"fields":           []string{field},
		"field_statistics": true,
		"term_statistics":  false,
		"offsets":          false,
		"positions":        false,
		"filter": map[string]any{
			"max_num_terms":   maxKeywordTerms,
			"min_word_length": minKeywordLength,
			"min_term_freq":   minKeywordTermFreq,
		},
	})
	if err != nil {
		return nil, err
	}
	res, err := esapi.TermvectorsRequest{Index: b.index, DocumentID: id, Body: bytes.NewReader(body)}.Do(ctx, b.client)
	if err != nil {
		return nil, fmt.Errorf("termvectors: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("termvectors: status %d: %s", res.StatusCode, msg)
	}
	var tv termVectorsResponse
	if err := json.NewDecoder(res.Body).Decode(&tv); err != nil {
		return nil, fmt.Errorf("decode termvectors: %w", err)
	}

	terms := tv.TermVectors[field].Terms
	kwds := make([]string, 0, len(terms))
	for term := range terms {
		kwds = append(kwds, term)
	}
	sort.Slice(kwds, func(i, j int) bool {
		si, sj := terms[kwds[i]].Score, terms[kwds[j]].Score
		if si != sj {
			return si > sj
		}
		return kwds[i] < kwds[j]
	})
	return kwds, nil
}

// SetKeywords replaces the kwds field of document id.
func (b *Backend) SetKeywords(ctx context.Context, id string, kwds []string) error {
	body, err := json.Marshal(map[string]any{"doc": map[string]any{"kwds": kwds}})
	if err != nil {
		return err
	}
	res, err := esapi.UpdateRequest{Index: b.index, DocumentID: id, Body: bytes.NewReader(body)}.Do(ctx, b.client)
	if err != nil {
		return fmt.Errorf("update keywords: %w", err)
	}
	return checkResponse("update keywords", res)
}

func checkResponse(op string, res *esapi.Response) error {
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s: status %d: %s", op, res.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

func drain(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}
